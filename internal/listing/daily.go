package listing

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/query"
)

// parseMasterIdx extracts filing entries from a daily master index file.
// The file has a free-form preamble, a dashed separator line, then one
// pipe-delimited entry per filing:
//
//	CIK|Company Name|Form Type|Date Filed|File Name
func parseMasterIdx(r io.Reader, baseURL string) ([]model.FilingReference, error) {
	base := baseURL
	if base == "" {
		base = query.DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inEntries := false
	var refs []model.FilingReference
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inEntries {
			if strings.HasPrefix(line, "---") {
				inEntries = true
			}
			continue
		}
		if line == "" {
			continue
		}

		fields := strings.Split(line, "|")
		if len(fields) != 5 {
			continue
		}

		cik, err := query.NormalizeCIK(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}
		filed, err := time.Parse("2006-01-02", strings.TrimSpace(fields[3]))
		if err != nil {
			continue
		}

		fileName := strings.TrimSpace(fields[4])
		accession := fileName
		if i := strings.LastIndex(accession, "/"); i >= 0 {
			accession = accession[i+1:]
		}
		accession = strings.TrimSuffix(accession, ".txt")

		refs = append(refs, model.FilingReference{
			CIK:             cik,
			CompanyName:     strings.TrimSpace(fields[1]),
			FormType:        strings.TrimSpace(fields[2]),
			FilingDate:      filed,
			AccessionNumber: accession,
			DocumentURL:     base + "Archives/" + fileName,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "read index")
	}
	if !inEntries {
		return nil, eris.New("missing index header separator")
	}

	return refs, nil
}
