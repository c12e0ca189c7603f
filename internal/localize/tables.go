package localize

// districtHindi maps English district names to Devanagari.
var districtHindi = map[string]string{
	// Rajasthan
	"Ajmer":            "अजमेर",
	"Alwar":            "अलवर",
	"Balotra":          "बलोतरा",
	"Banswara":         "बांसवाड़ा",
	"Baran":            "बारां",
	"Barmer":           "बाड़मेर",
	"Beawar":           "ब्यावर",
	"Bharatpur":        "भरतपुर",
	"Bhilwara":         "भीलवाड़ा",
	"Bikaner":          "बीकानेर",
	"Bundi":            "बूंदी",
	"Chittorgarh":      "चित्तौड़गढ़",
	"Churu":            "चूरू",
	"Dausa":            "दौसा",
	"Deeg":             "दीग",
	"Dholpur":          "धौलपुर",
	"Didwana-Kuchaman": "दीदवाना-कुचामन",
	"Dungarpur":        "डूंगरपुर",
	"Ganganagar":       "गंगानगर",
	"Hanumangarh":      "हनुमानगढ़",
	"Jaipur":           "जयपुर",
	"Jaisalmer":        "जैसलमेर",
	"Jalore":           "जालोर",
	"Jhalawar":         "झालावाड़",
	"Jhunjhunu":        "झुंझुनू",
	"Jodhpur":          "जोधपुर",
	"Karauli":          "करणौली",
	"Khairthal-Tijara": "खैरथल-तिजारा",
	"Kota":             "कोटा",
	"Kotputli-Behror":  "कोतपुतली-बहरोर",
	"Nagaur":           "नागौर",
	"Pali":             "पाली",
	"Pratapgarh":       "प्रतापगढ़",
	"Rajsamand":        "राजसमंद",
	"Salumbar":         "सलूमबर",
	"Sawai Madhopur":   "सवाई माधोपुर",
	"Sikar":            "सीकर",
	"Sirohi":           "सिरोही",
	"Tonk":             "टोंक",
	"Udaipur":          "उदयपुर",

	// Other large cities seen in submissions
	"Delhi":       "दिल्ली",
	"Mumbai":      "मुम्बई",
	"Kolkata":     "कोलकाता",
	"Chennai":     "चेन्नई",
	"Bangalore":   "बैंगलोर",
	"Hyderabad":   "हैदराबाद",
	"Pune":        "पुणे",
	"Ahmedabad":   "अहमदाबाद",
	"Surat":       "सूरत",
	"Lucknow":     "लखनऊ",
	"Kanpur":      "कानपुर",
	"Nagpur":      "नागपुर",
	"Indore":      "इंदौर",
	"Bhopal":      "भोपाल",
	"Patna":       "पटना",
	"Ranchi":      "रांची",
	"Guwahati":    "गुवाहाटी",
	"Bhubaneswar": "भुवनेश्वर",
	"Chandigarh":  "चंडीगढ़",
}

// professionHindi maps the English profession options to Devanagari.
var professionHindi = map[string]string{
	"Student":                        "छात्र",
	"Teacher/Educator":               "शिक्षक/शिक्षिका",
	"Doctor/Healthcare Professional": "डॉक्टर/स्वास्थ्य पेशेवर",
	"Engineer/IT Professional":       "इंजीनियर/IT पेशेवर",
	"Business Owner/Entrepreneur":    "व्यापारी/उद्यमी",
	"Farmer/Agriculturist":           "किसान/कृषि वैज्ञानिक",
	"Government Employee":            "सरकारी कर्मचारी",
	"Private Sector Employee":        "निजी क्षेत्र कर्मचारी",
	"Self-Employed":                  "स्वरोजगार",
	"Retired":                        "सेवानिवृत्त",
	"Homemaker":                      "गृहिणी",
	"Other":                          "अन्य",
}

// professionOrder is the display order of the profession options.
var professionOrder = []string{
	"Student",
	"Teacher/Educator",
	"Doctor/Healthcare Professional",
	"Engineer/IT Professional",
	"Business Owner/Entrepreneur",
	"Farmer/Agriculturist",
	"Government Employee",
	"Private Sector Employee",
	"Self-Employed",
	"Retired",
	"Homemaker",
	"Other",
}

// constituencyHindi maps cleaned constituency names (no number prefix, no
// reservation suffix) to Devanagari.
var constituencyHindi = map[string]string{
	// Ajmer
	"Ajmer":    "अजमेर",
	"Beawar":   "ब्यावर",
	"Masuda":   "मसूदा",
	"Kekri":    "केकरी",
	"Pisangan": "पिसंगन",
	"Jaipur":   "जयपुर",
	"Jodhpur":  "जोधपुर",
	"Kota":     "कोटा",
	"Bikaner":  "बीकानेर",

	// Udaipur
	"Gogunda":       "गोगुंदा",
	"Jhadol":        "झाडोल",
	"Kherwara":      "खेरवाड़ा",
	"Udaipur Rural": "उदयपुर ग्रामीण",
	"Udaipur":       "उदयपुर",
	"Mavli":         "मावली",
	"Vallabhnagar":  "वल्लभनगर",
	"Salumber":      "सलूमबर",

	// Tonk
	"Malpura":      "मालपुरा",
	"Niwai":        "नीवाई",
	"Tonk":         "टोंक",
	"Deoli-Uniara": "देवली-उनियारा",

	// Sri Ganganagar
	"Sadulshahar":   "सादुलशहर",
	"Ganganagar":    "गंगानगर",
	"Karanpur":      "करणपुर",
	"Suratgarh":     "सूरतगढ़",
	"Raisinghnagar": "रायसिंहनगर",
	"Anupgarh":      "अनूपगढ़",

	// Sirohi
	"Sirohi":       "सिरोही",
	"Pindwara-Abu": "पिण्डवाड़ा-आबू",
	"Reodar":       "रियौदर",

	// Sikar
	"Fatehpur":      "फतेहपुर",
	"Lachhmangarh":  "लक्ष्मणगढ़",
	"Dhod":          "धोद",
	"Sikar":         "सीकर",
	"Dantaramgarh":  "दतारामगढ़",
	"Khandela":      "खंडेला",
	"Neem Ka Thana": "नीमकाथाना",
	"Srimadhopur":   "श्रीमाधोपुर",

	// Sawai Madhopur
	"Gangapur":       "गंगापुर",
	"Bamanwas":       "बामनवास",
	"Sawai Madhopur": "सवाई माधोपुर",
	"Khandar":        "खंडार",

	// Rajsamand
	"Bhim":        "भीम",
	"Kumbhalgarh": "कुंभलगढ़",
	"Rajsamand":   "राजसमंद",
}

// monthsHindi are the Devanagari month names, January first.
var monthsHindi = [12]string{
	"जनवरी", "फ़रवरी", "मार्च", "अप्रैल", "मई", "जून",
	"जुलाई", "अगस्त", "सितंबर", "अक्टूबर", "नवंबर", "दिसंबर",
}
