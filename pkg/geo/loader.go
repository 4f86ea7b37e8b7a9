package geo

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/biter777/countries"
	"go.uber.org/zap"
)

// LoadCatalogCSV loads a custom catalog from a CSV file.
// Expected format: name,lat,lon,weight[,country] (e.g., "Oslo,59.91,10.75,3,NO").
// A header row is optional. Malformed rows are skipped.
func LoadCatalogCSV(path string, logger *zap.Logger) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return readCatalog(bufio.NewReader(file), logger.With(zap.String("path", path)))
}

func readCatalog(r io.Reader, logger *zap.Logger) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var locations []Location
	skipped := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				logger.Debug("Skipping unparseable catalog row",
					zap.Int("line", parseErr.StartLine),
					zap.Error(parseErr))
			} else {
				logger.Debug("Skipping unreadable catalog row", zap.Int("record", line), zap.Error(err))
			}
			continue
		}

		loc, ok := parseLocation(record)
		if !ok {
			// First row is a header unless it parses as data
			if line > 1 {
				skipped++
				logger.Debug("Skipping catalog row", zap.Int("line", line), zap.Strings("record", record))
			}
			continue
		}
		locations = append(locations, loc)
	}

	catalog, err := NewCatalog(locations)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded location catalog",
		zap.Int("locations", catalog.Len()),
		zap.Int("skipped", skipped))
	return catalog, nil
}

func parseLocation(record []string) (Location, bool) {
	if len(record) < 4 {
		return Location{}, false
	}
	name := strings.TrimSpace(record[0])
	lat, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return Location{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return Location{}, false
	}
	weight, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
	if err != nil {
		return Location{}, false
	}

	loc := Location{Name: name, Lat: lat, Lon: lon, Weight: weight}
	if len(record) >= 5 {
		loc.Country = countries.ByName(strings.ToUpper(strings.TrimSpace(record[4])))
	}
	return loc, true
}
