package certificate

import (
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-pledge-backend/internal/localize"
)

type plainText struct {
	title, certify, pledge, footer  string
	district, constituency, village string
	date, pledgeID                  string
}

var plainTexts = map[localize.Lang]plainText{
	localize.English: {
		title:        "People's Pledge Certificate",
		certify:      "This certifies that:",
		pledge:       "has taken the People's Pledge to promote transparency, inclusion, and accountability.",
		footer:       "This certificate is for verification and statistical purposes only.",
		district:     "District",
		constituency: "Constituency",
		village:      "Village/City",
		date:         "Date",
		pledgeID:     "Pledge ID",
	},
	localize.Hindi: {
		title:        "जन प्रतिज्ञा प्रमाण पत्र",
		certify:      "यह प्रमाणित किया जाता है कि:",
		pledge:       "ने पारदर्शिता, समावेश और जवाबदेही को बढ़ावा देने हेतु जन प्रतिज्ञा ली है।",
		footer:       "यह प्रमाण पत्र केवल सत्यापन और सांख्यिकीय उद्देश्य के लिए है।",
		district:     "जिला",
		constituency: "विधानसभा",
		village:      "गाँव/शहर",
		date:         "तिथि",
		pledgeID:     "प्रतिज्ञा ID",
	},
}

// plainDetails is the district, constituency and village line.
func plainDetails(req Request, tx plainText) string {
	district, constituency := req.Form.District, localize.CleanConstituency(req.Form.Constituency)
	if req.Lang == localize.Hindi {
		district = localize.DistrictHindi(district)
		if c := localize.ConstituencyHindi(req.Form.Constituency); c != "" {
			constituency = c
		}
	}
	return strings.Join([]string{
		tx.district + ": " + district,
		tx.constituency + ": " + constituency,
		tx.village + ": " + strings.TrimSpace(req.Form.Village),
	}, "   ")
}

// composePlain draws the A4 certificate used when no background is deployed.
func composePlain(req Request, now time.Time, selfie image.Image, fonts *FontSet, lg zerolog.Logger) ([]byte, error) {
	tpl := PlainTemplate
	p := tpl.Placement
	tx, ok := plainTexts[req.Lang]
	if !ok {
		tx = plainTexts[localize.English]
	}

	pdf := newPDF(now)
	pdf.AddPage()
	s := newPDFSurface(pdf, fonts)

	pdf.SetFillColor(20, 108, 67)
	pdf.Rect(0, 0, a4Width, 64, "F")
	pdf.SetTextColor(255, 255, 255)
	drawLeft(s, tx.title, TextPoint{X: 42, Y: 40, Size: 18}, true, lg)

	pdf.SetTextColor(0, 0, 0)
	drawLeft(s, tx.certify, TextPoint{X: 42, Y: 110, Size: 14}, false, lg)
	drawLeft(s, strings.TrimSpace(req.Form.Name), TextPoint{X: p.Name.X0, Y: p.Name.Y, Size: p.Name.Size}, true, lg)
	drawLeft(s, plainDetails(req, tx), TextPoint{X: 42, Y: 170, Size: 12}, false, lg)
	drawLeft(s, tx.pledge, TextPoint{X: 42, Y: 200, Size: 12}, false, lg)
	drawLeft(s, tx.date+": "+localize.LongDate(now, req.Lang), p.Date, false, lg)
	drawLeft(s, tx.pledgeID+": "+req.PledgeID, p.PledgeID, false, lg)

	if selfie != nil {
		if err := s.drawImage(selfie, p.Selfie); err != nil {
			lg.Warn().Err(err).Msg("selfie not drawn")
		}
	}

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(42, 780, 553, 780)
	pdf.SetTextColor(120, 120, 120)
	drawLeft(s, tx.footer, TextPoint{X: 42, Y: 796, Size: 9}, false, lg)

	return outputPDF(pdf)
}
