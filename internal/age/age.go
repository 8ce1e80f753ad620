// Package age resolves a normalized epoch-seconds age for cluster objects
// from several sources: timestamps embedded in object names, creation
// metadata, or aggregated field statistics.
//
// Name-embedded timestamps use strftime-style tokens. A timestring is
// compiled to a regular expression, the first match in the object name is
// parsed back with the same tokens, and week-of-year forms are anchored to
// Monday. Names written with ISO week numbering (%G + %V) are first parsed
// as Gregorian and then corrected for the two documented mismatch cases.
package age

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/culler-io/culler/internal/errkind"
)

// FixEpoch normalizes an epoch value to whole seconds by decimal order of
// magnitude reduction. Inputs in milliseconds, microseconds or nanoseconds
// all reduce to the 10-digit second representation (good through ~2286,
// and through 2038 on 32-bit second consumers).
func FixEpoch(epoch int64) int64 {
	if epoch < 0 {
		return 0
	}
	for epoch >= 1e10 {
		epoch /= 10
	}
	return epoch
}

// token→regex fragments for timestring compilation.
var tokenPatterns = map[byte]string{
	'Y': `\d{4}`,
	'G': `\d{4}`,
	'y': `\d{2}`,
	'm': `\d{2}`,
	'W': `\d{2}`,
	'U': `\d{2}`,
	'V': `\d{2}`,
	'd': `\d{2}`,
	'H': `\d{2}`,
	'M': `\d{2}`,
	'S': `\d{2}`,
	'j': `\d{3}`,
}

// tokenWidths is the digit count each token consumes when parsing.
var tokenWidths = map[byte]int{
	'Y': 4, 'G': 4, 'y': 2, 'm': 2, 'W': 2, 'U': 2, 'V': 2,
	'd': 2, 'H': 2, 'M': 2, 'S': 2, 'j': 3,
}

// Regex compiles a timestring into the regular expression that locates the
// timestamp inside an object name.
func Regex(timestring string) (*regexp.Regexp, error) {
	if timestring == "" {
		return nil, errkind.Missingf("timestring must not be empty")
	}

	var b strings.Builder
	i := 0
	for i < len(timestring) {
		c := timestring[i]
		if c != '%' {
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
			continue
		}
		if i+1 >= len(timestring) {
			return nil, errkind.Configf("timestring %q ends with a bare %%", timestring)
		}
		tok := timestring[i+1]
		pat, ok := tokenPatterns[tok]
		if !ok {
			return nil, errkind.Configf("timestring %q: unsupported token %%%c", timestring, tok)
		}
		b.WriteString(pat)
		i += 2
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errkind.Configf("timestring %q: %v", timestring, err)
	}
	return re, nil
}

// parsedFields holds the raw values extracted from a matched timestamp.
type parsedFields struct {
	year, isoYear          int
	month, day             int
	hour, minute, second   int
	julian                 int
	weekMon, weekSun, isoW int
	hasYear, hasISOYear    bool
	hasMonth, hasDay       bool
	hasJulian              bool
	hasWeekMon, hasWeekSun bool
	hasISOWeek             bool
}

// Parse locates the first timestring match in name and converts it to a
// UTC time. The second return value is false when the name does not match;
// that is not an error, such objects simply produce no age.
func Parse(name, timestring string) (time.Time, bool, error) {
	re, err := Regex(timestring)
	if err != nil {
		return time.Time{}, false, err
	}

	match := re.FindString(name)
	if match == "" {
		return time.Time{}, false, nil
	}

	t, err := parseMatch(match, timestring)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func parseMatch(match, timestring string) (time.Time, error) {
	var f parsedFields
	pos := 0
	i := 0
	for i < len(timestring) {
		c := timestring[i]
		if c != '%' {
			if pos >= len(match) || match[pos] != c {
				return time.Time{}, errkind.Configf("timestamp %q does not fit timestring %q", match, timestring)
			}
			pos++
			i++
			continue
		}

		tok := timestring[i+1]
		width := tokenWidths[tok]
		if pos+width > len(match) {
			return time.Time{}, errkind.Configf("timestamp %q does not fit timestring %q", match, timestring)
		}
		v, err := strconv.Atoi(match[pos : pos+width])
		if err != nil {
			return time.Time{}, errkind.Configf("timestamp %q: non-numeric value for %%%c", match, tok)
		}
		pos += width
		i += 2

		switch tok {
		case 'Y':
			f.year, f.hasYear = v, true
		case 'G':
			f.isoYear, f.hasISOYear = v, true
		case 'y':
			// Two-digit years pivot the same way strptime does.
			if v <= 68 {
				f.year = 2000 + v
			} else {
				f.year = 1900 + v
			}
			f.hasYear = true
		case 'm':
			f.month, f.hasMonth = v, true
		case 'd':
			f.day, f.hasDay = v, true
		case 'H':
			f.hour = v
		case 'M':
			f.minute = v
		case 'S':
			f.second = v
		case 'j':
			f.julian, f.hasJulian = v, true
		case 'W':
			f.weekMon, f.hasWeekMon = v, true
		case 'U':
			f.weekSun, f.hasWeekSun = v, true
		case 'V':
			f.isoW, f.hasISOWeek = v, true
		}
	}

	return assemble(f, timestring)
}

func assemble(f parsedFields, timestring string) (time.Time, error) {
	if f.hasISOWeek && !f.hasISOYear {
		return time.Time{}, errkind.Configf("timestring %q: %%V requires %%G", timestring)
	}
	if f.hasISOYear && !f.hasISOWeek {
		return time.Time{}, errkind.Configf("timestring %q: %%G requires %%V", timestring)
	}

	year := f.year
	weekMon := f.weekMon
	hasWeekMon := f.hasWeekMon
	isoMode := false
	if f.hasISOWeek {
		// Read the ISO pair as Gregorian first, correct afterwards.
		year = f.isoYear
		weekMon = f.isoW
		hasWeekMon = true
		isoMode = true
	}
	if !f.hasYear && !f.hasISOYear {
		return time.Time{}, errkind.Configf("timestring %q: no year token", timestring)
	}

	var t time.Time
	switch {
	case f.hasJulian:
		t = time.Date(year, 1, 1, f.hour, f.minute, f.second, 0, time.UTC).
			AddDate(0, 0, f.julian-1)
	case (hasWeekMon || f.hasWeekSun) && !f.hasDay:
		// Inject the Monday anchor and derive the day of year.
		week := weekMon
		weekStartsMon := true
		if !hasWeekMon {
			week = f.weekSun
			weekStartsMon = false
		}
		yday := julianFromWeek(year, week, weekStartsMon)
		t = time.Date(year, 1, 1, f.hour, f.minute, f.second, 0, time.UTC).
			AddDate(0, 0, yday-1)
	default:
		month := f.month
		if !f.hasMonth {
			month = 1
		}
		day := f.day
		if !f.hasDay {
			day = 1
		}
		t = time.Date(year, time.Month(month), day, f.hour, f.minute, f.second, 0, time.UTC)
	}

	if isoMode {
		t = fixISOWeek(t, f.isoW)
	}
	return t, nil
}

// julianFromWeek computes the day of year of the Monday anchor inside week
// number `week` of `year`. Week numbering follows strftime: days before
// the year's first Monday (or Sunday for Sunday-started weeks) are week 0.
func julianFromWeek(year, week int, weekStartsMon bool) int {
	jan1 := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	firstWeekday := mondayBased(jan1.Weekday())
	dayOfWeek := 0 // the Monday anchor, Monday-based
	if !weekStartsMon {
		firstWeekday = (firstWeekday + 1) % 7
		dayOfWeek = 1 // Monday in a Sunday-based week
	}

	week0Length := (7 - firstWeekday) % 7
	if week == 0 {
		return 1 + dayOfWeek - firstWeekday
	}
	return 1 + week0Length + 7*(week-1) + dayOfWeek
}

// fixISOWeek corrects a date parsed from an ISO-week-numbered name with
// Gregorian rules. Two cases need a correction of minus seven days: years
// where ISO numbering leads Gregorian numbering, and ISO week 53 rolling
// into Gregorian week 1 of the following year.
func fixISOWeek(t time.Time, parsedWeek int) time.Time {
	isoYear, isoWeek := t.ISOWeek()
	isoStr := fmt.Sprintf("%04d%02d", isoYear, isoWeek)
	gregStr := fmt.Sprintf("%04d%02d", t.Year(), gregWeek(t))

	if isoStr > gregStr || (parsedWeek == 53 && isoWeek == 1) {
		return t.AddDate(0, 0, -7)
	}
	return t
}

// mondayBased converts a time.Weekday (Sunday=0) to Monday=0 numbering.
func mondayBased(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// gregWeek is the strftime %W week number of t: Monday-started weeks,
// days before the first Monday are week 0.
func gregWeek(t time.Time) int {
	return (t.YearDay() + 6 - mondayBased(t.Weekday())) / 7
}

// sundayWeek is the strftime %U week number of t.
func sundayWeek(t time.Time) int {
	return (t.YearDay() + 6 - int(t.Weekday())) / 7
}

// Format renders t through the same token set Parse understands, so a
// resolved time can be re-formatted for comparison against the source name.
func Format(t time.Time, timestring string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(timestring) {
		c := timestring[i]
		if c != '%' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(timestring) {
			return "", errkind.Configf("timestring %q ends with a bare %%", timestring)
		}
		tok := timestring[i+1]
		i += 2

		switch tok {
		case 'Y':
			fmt.Fprintf(&b, "%04d", t.Year())
		case 'G':
			isoYear, _ := t.ISOWeek()
			fmt.Fprintf(&b, "%04d", isoYear)
		case 'y':
			fmt.Fprintf(&b, "%02d", t.Year()%100)
		case 'm':
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case 'd':
			fmt.Fprintf(&b, "%02d", t.Day())
		case 'H':
			fmt.Fprintf(&b, "%02d", t.Hour())
		case 'M':
			fmt.Fprintf(&b, "%02d", t.Minute())
		case 'S':
			fmt.Fprintf(&b, "%02d", t.Second())
		case 'j':
			fmt.Fprintf(&b, "%03d", t.YearDay())
		case 'W':
			fmt.Fprintf(&b, "%02d", gregWeek(t))
		case 'U':
			fmt.Fprintf(&b, "%02d", sundayWeek(t))
		case 'V':
			_, isoWeek := t.ISOWeek()
			fmt.Fprintf(&b, "%02d", isoWeek)
		default:
			return "", errkind.Configf("timestring %q: unsupported token %%%c", timestring, tok)
		}
	}
	return b.String(), nil
}

// Units accepted by age and period filters, with the second counts used
// for relative arithmetic. Months and years are approximations here; the
// period filter uses exact calendar boundaries instead.
var unitSeconds = map[string]int64{
	"seconds": 1,
	"minutes": 60,
	"hours":   3600,
	"days":    86400,
	"weeks":   7 * 86400,
	"months":  30 * 86400,
	"years":   365 * 86400,
}

// UnitSeconds returns the length of one unit in seconds.
func UnitSeconds(unit string) (int64, error) {
	s, ok := unitSeconds[unit]
	if !ok {
		return 0, errkind.Configf("unknown unit %q", unit)
	}
	return s, nil
}
