package model

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateGoogleSheetsURL checks that raw points at a Google Sheets document.
func ValidateGoogleSheetsURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%q is not a valid Google Sheets URL: %w", raw, err)
	}
	if u.Scheme != "https" || u.Host != "docs.google.com" || !strings.Contains(u.Path, "/spreadsheets/") {
		return fmt.Errorf("%q is not a valid Google Sheets URL", raw)
	}
	return nil
}

// GoogleSheetsExportURL rewrites a sheet URL as copied from the browser into
// its CSV export URL. The gid of the URL selects the tab; it defaults to the first one.
func GoogleSheetsExportURL(raw string) (string, error) {
	if err := ValidateGoogleSheetsURL(raw); err != nil {
		return "", err
	}
	gid := "0"
	if i := strings.LastIndex(raw, "gid="); i >= 0 {
		gid = raw[i+len("gid="):]
	}
	base := raw
	if i := strings.LastIndex(base, "/edit"); i >= 0 {
		base = base[:i]
	}
	return fmt.Sprintf("%s/export?format=csv&gid=%s", base, gid), nil
}
