package cases

import (
	"fmt"
	"strings"
	"time"
)

// ControlScheme is the prefix/suffix/delimiter of one subtype's control numbers.
type ControlScheme struct {
	Prefix    string
	Suffix    string
	Delimiter string
}

// Subtypes of direct hire applications.
const (
	SubtypeProfessional    = "professional"
	SubtypeHousehold       = "household"
	SubtypeGovToGov        = "gov_to_gov"
	SubtypeBalikManggagawa = "balik_manggagawa"
)

var controlSchemes = map[string]ControlScheme{
	SubtypeProfessional:    {Prefix: "DH", Suffix: "PROF", Delimiter: "-"},
	SubtypeHousehold:       {Prefix: "DH", Suffix: "HSW", Delimiter: "-"},
	SubtypeGovToGov:        {Prefix: "GG", Suffix: "G2G", Delimiter: "-"},
	SubtypeBalikManggagawa: {Prefix: "BM", Suffix: "RET", Delimiter: "-"},
}

// SchemeFor looks up the control number scheme of a subtype.
func SchemeFor(subtype string) (ControlScheme, error) {
	s, ok := controlSchemes[subtype]
	if !ok {
		return ControlScheme{}, &ValidationError{Field: "subtype", Reason: fmt.Sprintf("unknown subtype %q", subtype)}
	}
	return s, nil
}

// SequencePeriods returns the counter periods for an allocation at now: "YYYY-MM" and "YYYY".
// Both are computed in UTC so every node agrees on month boundaries.
func SequencePeriods(now time.Time) (monthly, yearly string) {
	now = now.UTC()
	return now.Format("2006-01"), now.Format("2006")
}

// FormatControlNumber renders <PREFIX>-<SUFFIX>-<YYYY>-<MMDD>-<monthly:03d>-<yearly:03d> with the
// scheme's delimiter.
func FormatControlNumber(s ControlScheme, now time.Time, monthlySeq, yearlySeq int) string {
	now = now.UTC()
	return strings.Join([]string{
		s.Prefix,
		s.Suffix,
		now.Format("2006"),
		now.Format("0102"),
		fmt.Sprintf("%03d", monthlySeq),
		fmt.Sprintf("%03d", yearlySeq),
	}, s.Delimiter)
}

// Allocation names the two counters a new case draws from. Stores increment both counters inside
// the insert transaction and pass the results to Number.
type Allocation struct {
	Scheme string
	Month  string
	Year   string
	Number func(monthlySeq, yearlySeq int) string
}

// Allocate prepares the control number allocation for a case of subtype created at now.
func Allocate(subtype string, now time.Time) (Allocation, error) {
	s, err := SchemeFor(subtype)
	if err != nil {
		return Allocation{}, err
	}
	month, year := SequencePeriods(now)
	return Allocation{
		Scheme: subtype,
		Month:  month,
		Year:   year,
		Number: func(m, y int) string { return FormatControlNumber(s, now, m, y) },
	}, nil
}
