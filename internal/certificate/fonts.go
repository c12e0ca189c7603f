package certificate

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/tbourn/go-pledge-backend/internal/script"
)

// Default font families served under /fonts.
const (
	DefaultLatinFamily      = "NotoSans"
	DefaultDevanagariFamily = "NotoSansDevanagari"
)

type fontKey struct {
	script script.Script
	bold   bool
}

func (k fontKey) weight() string {
	if k.bold {
		return "Bold"
	}
	return "Regular"
}

var allFontKeys = []fontKey{
	{script.Latin, false},
	{script.Latin, true},
	{script.Devanagari, false},
	{script.Devanagari, true},
}

// bundled are the Go fonts compiled into the binary; they cover Latin only.
var bundled = sync.OnceValues(func() (map[bool]*opentype.Font, error) {
	reg, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}
	return map[bool]*opentype.Font{false: reg, true: bold}, nil
})

// FontLoader fetches TrueType fonts from the asset source and caches the
// ones that loaded. Failed fetches are retried on the next Load.
type FontLoader struct {
	Assets           AssetSource
	LatinFamily      string
	DevanagariFamily string
	Logger           zerolog.Logger

	mu    sync.Mutex
	cache map[fontKey][]byte
}

// NewFontLoader returns a loader for the default families.
func NewFontLoader(src AssetSource, lg zerolog.Logger) *FontLoader {
	return &FontLoader{
		Assets:           src,
		LatinFamily:      DefaultLatinFamily,
		DevanagariFamily: DefaultDevanagariFamily,
		Logger:           lg,
	}
}

func (l *FontLoader) path(k fontKey) string {
	family := l.LatinFamily
	if k.script == script.Devanagari {
		family = l.DevanagariFamily
	}
	return fmt.Sprintf("fonts/%s-%s.ttf", family, k.weight())
}

// Load returns the fonts available right now. It never fails; anything that
// could not be fetched or parsed is absent from the set and callers fall back.
func (l *FontLoader) Load(ctx context.Context) *FontSet {
	set := &FontSet{raw: map[fontKey][]byte{}, parsed: map[fontKey]*opentype.Font{}}
	if l == nil || l.Assets == nil {
		return set
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache == nil {
		l.cache = map[fontKey][]byte{}
	}

	for _, k := range allFontKeys {
		b, ok := l.cache[k]
		if !ok {
			var err error
			b, err = l.Assets.Fetch(ctx, l.path(k), false)
			if err != nil {
				l.Logger.Warn().Err(err).Str("font", l.path(k)).Msg("font unavailable; using fallback")
				continue
			}
		}
		f, err := opentype.Parse(b)
		if err != nil {
			l.Logger.Warn().Err(err).Str("font", l.path(k)).Msg("font unreadable; using fallback")
			continue
		}
		l.cache[k] = b
		set.raw[k] = b
		set.parsed[k] = f
	}
	return set
}

// FontSet is the result of one FontLoader.Load.
type FontSet struct {
	raw    map[fontKey][]byte
	parsed map[fontKey]*opentype.Font
}

// TTF returns the fetched font file for a script and weight, if any.
func (s *FontSet) TTF(sc script.Script, bold bool) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	b, ok := s.raw[fontKey{sc, bold}]
	return b, ok
}

// Font resolves the best available face: the exact font, the regular weight
// of the same script, the Latin font of the same weight, then the bundled Go
// fonts. It returns nil only if the bundled fonts failed to parse.
func (s *FontSet) Font(sc script.Script, bold bool) *opentype.Font {
	if s != nil {
		for _, k := range []fontKey{{sc, bold}, {sc, false}, {script.Latin, bold}, {script.Latin, false}} {
			if f, ok := s.parsed[k]; ok {
				return f
			}
		}
	}
	b, err := bundled()
	if err != nil {
		return nil
	}
	return b[bold]
}
