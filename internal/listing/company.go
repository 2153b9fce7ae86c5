package listing

import (
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/filings-cli/internal/model"
)

// companyFiling mirrors one <filing> element of a browse-edgar XML page.
type companyFiling struct {
	Type       string `xml:"type"`
	DateFiled  string `xml:"dateFiled"`
	FilingHREF string `xml:"filingHREF"`
}

// parseCompanyPage extracts filing entries from a browse-edgar XML page.
// It scans tokens rather than decoding the whole document, so surrounding
// structure (companyInfo, pagination hints) is ignored.
func parseCompanyPage(r io.Reader, cik string) ([]model.FilingReference, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var refs []model.FilingReference
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "filing" {
			continue
		}

		var f companyFiling
		if err := decoder.DecodeElement(&f, &se); err != nil {
			return nil, eris.Wrap(err, "decode filing element")
		}
		if f.FilingHREF == "" {
			return nil, eris.New("filing entry missing filingHREF")
		}

		filed, err := time.Parse("2006-01-02", strings.TrimSpace(f.DateFiled))
		if err != nil {
			return nil, eris.Wrapf(err, "parse dateFiled %q", f.DateFiled)
		}

		docURL, accession := documentURL(strings.TrimSpace(f.FilingHREF))
		refs = append(refs, model.FilingReference{
			CIK:             cik,
			FormType:        strings.TrimSpace(f.Type),
			FilingDate:      filed,
			AccessionNumber: accession,
			DocumentURL:     docURL,
		})
	}

	return refs, nil
}

// documentURL rewrites a filing index link to the canonical full-text
// document URL. Index links look like
// .../Archives/edgar/data/320193/000032019321000056/0000320193-21-000056-index.htm
// and the complete submission lives next to them as
// .../0000320193-21-000056.txt.
func documentURL(href string) (docURL string, accession string) {
	base := href
	for _, suffix := range []string{"-index.htm", "-index.html"} {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}
	accession = base
	if i := strings.LastIndex(base, "/"); i >= 0 {
		accession = base[i+1:]
	}
	if base == href {
		// Unrecognized link shape; hand it back untouched.
		return href, accession
	}
	return base + ".txt", accession
}
