// Package render draws departure boards and messages as styled
// terminal text.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tidbyt.dev/departures/messages"
	"tidbyt.dev/departures/model"
)

const (
	// Same as moment's "llll"
	TimeLayout = "Mon, Jan 2, 2006 3:04 PM"

	routeNumberWidth = 3
	timeLabelWidth   = 7
)

type Options struct {
	HorizonMinutes  int
	CriticalMinutes int

	// Defaults to lipgloss' renderer for stdout
	Renderer *lipgloss.Renderer
}

type styles struct {
	stopName  lipgloss.Style
	direction lipgloss.Style
	empty     lipgloss.Style
	critical  lipgloss.Style
	realtime  lipgloss.Style
	timestamp lipgloss.Style
	author    lipgloss.Style
	column    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return styles{
		stopName:  r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		direction: r.NewStyle().Foreground(lipgloss.Color("11")),
		empty:     r.NewStyle().Foreground(lipgloss.Color("241")),
		critical:  r.NewStyle().Background(lipgloss.Color("1")),
		realtime:  r.NewStyle().Foreground(lipgloss.Color("42")),
		timestamp: r.NewStyle().Foreground(lipgloss.Color("12")),
		author:    r.NewStyle().Foreground(lipgloss.Color("11")),
		column:    r.NewStyle().MarginRight(3),
	}
}

// Whole minutes until t, rounded down.
func MinutesUntil(now time.Time, t time.Time) int {
	return int(math.Floor(t.Sub(now).Seconds() / 60))
}

// Fixed width countdown label.
func TimeLabel(minutes int) string {
	switch {
	case minutes <= 0:
		return "<1 min "
	case minutes == 1:
		return " 1 min "
	case minutes < 10:
		return fmt.Sprintf(" %d mins", minutes)
	}
	return fmt.Sprintf("%d mins", minutes)
}

// Route number right aligned in a three character column, followed
// by the description.
func RouteLabel(number string, description string) string {
	pad := max(0, routeNumberWidth-len(number))
	return strings.Repeat(" ", pad) + number + " " + description
}

func Clock(now time.Time) string {
	return now.Format(TimeLayout)
}

// Boards, with sibling stops side by side under a shared stop name
// header.
func Boards(boards []model.Board, now time.Time, opts Options) string {
	s := newStyles(opts.Renderer)

	width := 0
	for _, b := range boards {
		for _, d := range b.Departures {
			width = max(width, routeNumberWidth+1+len(d.RouteDescription)+1+timeLabelWidth)
		}
	}

	sections := []string{}
	for _, group := range groupSiblings(boards) {
		columns := []string{}
		for _, b := range group {
			columns = append(columns, s.column.Render(column(s, b, now, width, opts)))
		}
		sections = append(sections, lipgloss.JoinVertical(
			lipgloss.Left,
			s.stopName.Render(group[0].StopName),
			lipgloss.JoinHorizontal(lipgloss.Top, columns...),
		))
	}

	return strings.Join(sections, "\n\n")
}

func column(s styles, b model.Board, now time.Time, width int, opts Options) string {
	lines := []string{s.direction.Render(b.Direction)}

	shown := 0
	for _, d := range b.Departures {
		minutes := MinutesUntil(now, d.Time)
		if minutes < 0 {
			continue
		}

		route := RouteLabel(d.RouteNumber, d.RouteDescription)
		label := TimeLabel(minutes)
		gap := max(1, width-len(route)-len(label))

		styled := label
		if minutes <= opts.CriticalMinutes {
			styled = s.critical.Render(label)
		} else if d.Realtime {
			styled = s.realtime.Render(label)
		}

		lines = append(lines, route+strings.Repeat(" ", gap)+styled)
		shown++
	}

	if shown == 0 {
		lines = append(lines, s.empty.Render(fmt.Sprintf("No buses in the next %d minutes", opts.HorizonMinutes)))
	}

	return strings.Join(lines, "\n")
}

// Pairs up adjacent boards that reference each other as siblings.
func groupSiblings(boards []model.Board) [][]model.Board {
	groups := [][]model.Board{}
	for i := 0; i < len(boards); i++ {
		b := boards[i]
		if i+1 < len(boards) && b.SiblingStopID != "" &&
			boards[i+1].StopID == b.SiblingStopID &&
			boards[i+1].SiblingStopID == b.StopID {
			groups = append(groups, []model.Board{b, boards[i+1]})
			i++
			continue
		}
		groups = append(groups, []model.Board{b})
	}
	return groups
}

// The last rows-1 messages in three columns: time, author and text.
func Messages(msgs []messages.Message, rows int, opts Options) string {
	s := newStyles(opts.Renderer)

	if rows > 1 && len(msgs) > rows-1 {
		msgs = msgs[len(msgs)-(rows-1):]
	}
	if len(msgs) == 0 {
		return ""
	}

	times := []string{}
	authors := []string{}
	texts := []string{}
	for _, m := range msgs {
		times = append(times, Clock(m.ReceivedAt))
		authors = append(authors, m.Author)
		texts = append(texts, m.Text)
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.timestamp.MarginRight(1).Render(strings.Join(times, "\n")),
		s.author.MarginRight(1).Render(strings.Join(authors, "\n")),
		strings.Join(texts, "\n"),
	)
}
