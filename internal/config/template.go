package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/talgya/lifesim/internal/clock"
	"github.com/talgya/lifesim/internal/schedule"
)

// Schedule templates use a compact line format, one line per group of
// day types:
//
//	# Mara's week
//	mon,tue,wed,thu,fri: 07:00-08:00 breakfast @kitchen !60 ~30/0.8; 09:00-17:00 work @shop !80
//	sat,sun: 10:00-11:00 market @plaza !40 ~60/0.9
//
// Fields after the slot: activity, optional @location, optional
// !importance, optional ~maxShift/skipProbability.

type templateFile struct {
	Lines []*templateLine `parser:"@@*"`
}

type templateLine struct {
	Days    []string         `parser:"@Ident (',' @Ident)* ':'"`
	Entries []*templateEntry `parser:"@@ (';' @@)*"`
}

type templateEntry struct {
	Start      string    `parser:"@Time '-'"`
	End        string    `parser:"@Time"`
	Activity   string    `parser:"@Ident"`
	Location   *string   `parser:"('@' @Ident)?"`
	Importance *float64  `parser:"('!' @Number)?"`
	Flex       *flexSpec `parser:"('~' @@)?"`
}

type flexSpec struct {
	ShiftMinutes int     `parser:"@Number '/'"`
	SkipProb     float64 `parser:"@Number"`
}

var templateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[\s]+`},
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Time", Pattern: `\d{1,2}:\d{2}`},
	{Name: "Number", Pattern: `\d+(\.\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_-]*`},
	{Name: "Punct", Pattern: `[:,;@!~/\-]`},
})

var templateParser = participle.MustBuild[templateFile](
	participle.Lexer(templateLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

var dayNames = map[string]clock.DayType{
	"mon": clock.Monday,
	"tue": clock.Tuesday,
	"wed": clock.Wednesday,
	"thu": clock.Thursday,
	"fri": clock.Friday,
	"sat": clock.Saturday,
	"sun": clock.Sunday,
	"hol": clock.Holiday,
}

// Template defaults.
const (
	defaultImportance = 50.0
)

// ParseTemplates parses template source into per-day-type item lists.
func ParseTemplates(src string) (map[clock.DayType][]schedule.Item, error) {
	file, err := templateParser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}

	out := make(map[clock.DayType][]schedule.Item)
	for _, line := range file.Lines {
		var days []clock.DayType
		for _, d := range line.Days {
			dt, ok := dayNames[strings.ToLower(d)]
			if !ok {
				return nil, fmt.Errorf("template: unknown day %q", d)
			}
			days = append(days, dt)
		}
		for _, e := range line.Entries {
			item, err := e.toItem()
			if err != nil {
				return nil, err
			}
			for _, dt := range days {
				// Distinct item identity per day type; templates stamp
				// out independent copies.
				out[dt] = append(out[dt], schedule.NewItem(item.Slot, item.ActivityID, item.LocationID, item.Importance, item.Flex))
			}
		}
	}
	return out, nil
}

// LoadTemplates reads a template file from disk.
func LoadTemplates(path string) (map[clock.DayType][]schedule.Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return ParseTemplates(string(raw))
}

func (e *templateEntry) toItem() (schedule.Item, error) {
	start, err := parseClockTime(e.Start)
	if err != nil {
		return schedule.Item{}, err
	}
	end, err := parseClockTime(e.End)
	if err != nil {
		return schedule.Item{}, err
	}
	if end <= start {
		// Overnight span: the end lands past midnight.
		end += clock.MinutesPerDay
	}
	slot, err := schedule.NewTimeSlot(start, end)
	if err != nil {
		return schedule.Item{}, fmt.Errorf("template %s-%s: %w", e.Start, e.End, err)
	}

	importance := defaultImportance
	if e.Importance != nil {
		importance = *e.Importance
	}
	var flex schedule.Flexibility
	if e.Flex != nil {
		flex = schedule.Flexibility{
			MaxShiftMinutes: e.Flex.ShiftMinutes,
			SkipProbability: e.Flex.SkipProb,
		}
	}
	location := ""
	if e.Location != nil {
		location = *e.Location
	}
	item := schedule.Item{
		Slot:       slot,
		ActivityID: e.Activity,
		LocationID: location,
		Importance: importance,
		Flex:       flex,
	}
	if err := schedule.Validate(item); err != nil {
		return schedule.Item{}, fmt.Errorf("template entry %s: %w", e.Activity, err)
	}
	return item, nil
}

func parseClockTime(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	h, err := strconv.Atoi(parts[0])
	if err != nil || h > 23 {
		return 0, fmt.Errorf("template: bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m > 59 {
		return 0, fmt.Errorf("template: bad minute in %q", s)
	}
	return h*60 + m, nil
}
