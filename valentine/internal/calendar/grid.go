package calendar

import "fmt"

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// WeekdayHeaders are the header labels, Sunday first.
var WeekdayHeaders = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// CellKind tells real days apart from the filler around them.
type CellKind string

const (
	CellLeading  CellKind = "leading"  // trailing days of the previous month
	CellDay      CellKind = "day"      // selectable
	CellTrailing CellKind = "trailing" // first days of the next month
)

// Cell is one square of the month grid.
type Cell struct {
	Kind     CellKind `json:"kind"`
	Label    int      `json:"label"`
	Selected bool     `json:"selected,omitempty"`
}

// Grid describes a month for the browser to paint. Cells excludes the
// header row and always has a length that is a multiple of 7.
type Grid struct {
	Title   string   `json:"title"`
	Year    int      `json:"year"`
	Month   int      `json:"month"`
	Headers []string `json:"headers"`
	Cells   []Cell   `json:"cells"`
}

// RealDays counts the selectable cells.
func (g Grid) RealDays() int {
	n := 0
	for _, c := range g.Cells {
		if c.Kind == CellDay {
			n++
		}
	}
	return n
}

// Render builds the grid for cur. It has no state of its own.
func Render(cur Cursor) Grid {
	lead := int(FirstWeekday(cur.Year, cur.Month))
	days := DaysIn(cur.Year, cur.Month)
	prevDays := DaysIn(cur.Year, cur.Month-1)

	total := lead + days
	trail := (7 - total%7) % 7

	cells := make([]Cell, 0, total+trail)
	for i := 0; i < lead; i++ {
		cells = append(cells, Cell{Kind: CellLeading, Label: prevDays - lead + 1 + i})
	}
	for d := 1; d <= days; d++ {
		cells = append(cells, Cell{Kind: CellDay, Label: d, Selected: d == cur.Day})
	}
	for n := 1; n <= trail; n++ {
		cells = append(cells, Cell{Kind: CellTrailing, Label: n})
	}

	headers := make([]string, len(WeekdayHeaders))
	copy(headers, WeekdayHeaders)

	return Grid{
		Title:   fmt.Sprintf("%s %d", monthNames[cur.Month], cur.Year),
		Year:    cur.Year,
		Month:   cur.Month,
		Headers: headers,
		Cells:   cells,
	}
}
