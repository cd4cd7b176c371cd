package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/david/tender-matcher/internal/models"
)

const certificateClassWindow = 200

// ParseCertificate reads a qualification certificate into a draft profile.
// The draft is incomplete when neither a company name nor any category
// could be read.
func (e *Extractor) ParseCertificate(text string) models.CertificateDraft {
	text = prepareText(text)
	draft := models.CertificateDraft{
		CompanyName:  firstCapture(companyRegexes, text),
		Certificates: []models.QualificationCertificate{},
		IssuingBody:  firstCapture(issuerRegexes, text),
	}

	if m := vatNumberRegex.FindStringSubmatch(text); m != nil {
		draft.VATNumber = &m[1]
	}

	for _, re := range expiryRegexes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], "-", "/")
		if t, err := time.Parse("02/01/2006", raw); err == nil {
			draft.ExpiresAt = &t
			break
		}
	}

	seen := map[string]bool{}
	mentions := findCategoryMentions(text)
	for i, m := range mentions {
		if seen[m.code] {
			continue
		}
		hi := len(text)
		if i+1 < len(mentions) {
			hi = mentions[i+1].start
		}
		segment := text[m.end:clampMax(m.end+certificateClassWindow, hi)]
		class := e.firstClass(segment)
		if class == nil {
			class = e.firstBareClass(segment)
		}
		if class == nil {
			continue
		}
		seen[m.code] = true
		draft.Certificates = append(draft.Certificates, models.QualificationCertificate{
			CategoryCode: m.code,
			ClassLabel:   *class,
		})
	}

	draft.Incomplete = draft.CompanyName == nil && len(draft.Certificates) == 0
	return draft
}

func firstCapture(res []*regexp.Regexp, text string) *string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			v := strings.TrimSpace(strings.TrimRight(m[1], " ,.-"))
			if v != "" {
				return &v
			}
		}
	}
	return nil
}
