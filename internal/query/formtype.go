package query

import (
	"fmt"
	"strings"
)

// FormType is a closed enumeration of supported EDGAR form categories.
// The value is the literal filter code the remote index expects.
type FormType string

const (
	// FormTypeAll disables form filtering.
	FormTypeAll FormType = ""

	FormType3      FormType = "3"
	FormType4      FormType = "4"
	FormType5      FormType = "5"
	FormType6K     FormType = "6-K"
	FormType8K     FormType = "8-K"
	FormType8KA    FormType = "8-K/A"
	FormType10K    FormType = "10-K"
	FormType10KA   FormType = "10-K/A"
	FormType10Q    FormType = "10-Q"
	FormType10QA   FormType = "10-Q/A"
	FormType13FHR  FormType = "13F-HR"
	FormType20F    FormType = "20-F"
	FormType40F    FormType = "40-F"
	FormTypeS1     FormType = "S-1"
	FormTypeS4     FormType = "S-4"
	FormTypeSC13D  FormType = "SC 13D"
	FormTypeSC13G  FormType = "SC 13G"
	FormTypeDEF14A FormType = "DEF 14A"
)

var formTypes = map[string]FormType{
	string(FormType3):      FormType3,
	string(FormType4):      FormType4,
	string(FormType5):      FormType5,
	string(FormType6K):     FormType6K,
	string(FormType8K):     FormType8K,
	string(FormType8KA):    FormType8KA,
	string(FormType10K):    FormType10K,
	string(FormType10KA):   FormType10KA,
	string(FormType10Q):    FormType10Q,
	string(FormType10QA):   FormType10QA,
	string(FormType13FHR):  FormType13FHR,
	string(FormType20F):    FormType20F,
	string(FormType40F):    FormType40F,
	string(FormTypeS1):     FormTypeS1,
	string(FormTypeS4):     FormTypeS4,
	string(FormTypeSC13D):  FormTypeSC13D,
	string(FormTypeSC13G):  FormTypeSC13G,
	string(FormTypeDEF14A): FormTypeDEF14A,
}

// UnsupportedFilingTypeError reports a filter value outside the supported
// form enumeration. It is returned before any network request is made.
type UnsupportedFilingTypeError struct {
	Value string
}

func (e *UnsupportedFilingTypeError) Error() string {
	return fmt.Sprintf("unsupported filing type %q", e.Value)
}

// ParseFormType maps a user-supplied filter string to its FormType.
// Matching is case-insensitive; the empty string means "all types".
func ParseFormType(s string) (FormType, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return FormTypeAll, nil
	}
	if ft, ok := formTypes[trimmed]; ok {
		return ft, nil
	}
	return FormTypeAll, &UnsupportedFilingTypeError{Value: s}
}

// Code returns the literal filter code sent to the remote index.
func (f FormType) Code() string {
	return string(f)
}

// Valid reports whether f is part of the supported enumeration.
func (f FormType) Valid() bool {
	if f == FormTypeAll {
		return true
	}
	_, ok := formTypes[string(f)]
	return ok
}

// Matches reports whether a listed form code satisfies the filter.
func (f FormType) Matches(code string) bool {
	if f == FormTypeAll {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(code), string(f))
}

var pathReplacer = strings.NewReplacer("/", "", " ", "-")

// PathSegment returns a filesystem-safe rendering of a form code, e.g.
// "10-K/A" becomes "10-KA" and "DEF 14A" becomes "DEF-14A".
func PathSegment(code string) string {
	return pathReplacer.Replace(strings.TrimSpace(code))
}
