package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"tidbyt.dev/departures/snapshot"
)

// The static tables consumed from an archive.
type Table int

const (
	TableRoutes Table = iota
	TableStops
	TableTrips
	TableCalendarDates
	TableStopTimes
)

// Tables in the order they are streamed.
var Tables = []Table{
	TableRoutes,
	TableStops,
	TableTrips,
	TableCalendarDates,
	TableStopTimes,
}

func (t Table) FileName() string {
	switch t {
	case TableRoutes:
		return "routes.txt"
	case TableStops:
		return "stops.txt"
	case TableTrips:
		return "trips.txt"
	case TableCalendarDates:
		return "calendar_dates.txt"
	case TableStopTimes:
		return "stop_times.txt"
	}
	return ""
}

// Whether the archive is malformed without this table. A feed
// lacking calendar_dates.txt is legal, but nothing will be running.
func (t Table) Required() bool {
	return t != TableCalendarDates
}

func tableForFile(name string) (Table, bool) {
	for _, t := range Tables {
		if t.FileName() == name {
			return t, true
		}
	}
	return 0, false
}

func init() {
	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})
}

// Streams the tables of a static GTFS archive into writer.
func ParseStatic(writer snapshot.StaticWriter, buf []byte) error {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return fmt.Errorf("unzipping: %w", err)
	}

	files := map[Table]*zip.File{}
	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// agencies don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		table, found := tableForFile(path[len(path)-1])
		if !found {
			continue
		}
		files[table] = f
	}

	for _, table := range Tables {
		if files[table] == nil && table.Required() {
			return fmt.Errorf("missing %s", table.FileName())
		}
	}

	for _, table := range Tables {
		f := files[table]
		if f == nil {
			continue
		}
		err := parseTable(writer, table, f)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", table.FileName(), err)
		}
	}

	return nil
}

func parseTable(writer snapshot.StaticWriter, table Table, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	switch table {
	case TableRoutes:
		return ParseRoutes(writer, rc)
	case TableStops:
		return ParseStops(writer, rc)
	case TableTrips:
		return ParseTrips(writer, rc)
	case TableCalendarDates:
		return ParseCalendarDates(writer, rc)
	case TableStopTimes:
		return ParseStopTimes(writer, rc)
	}

	return fmt.Errorf("unhandled table %d", table)
}
