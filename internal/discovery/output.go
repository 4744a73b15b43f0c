package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report is the discovery output file.
type Report struct {
	DiscoveryDate time.Time `json:"discovery_date"`
	TotalBoards   int       `json:"total_boards"`
	Boards        []Board   `json:"boards"`
	Statistics    Stats     `json:"statistics"`
}

func (c *Crawler) Report() Report {
	c.init()
	boards := c.boards.Sorted()
	return Report{
		DiscoveryDate: c.Now(),
		TotalBoards:   len(boards),
		Boards:        boards,
		Statistics:    c.stats,
	}
}

func WriteReport(path string, r Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal discovery report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write discovery report: %w", err)
	}
	return nil
}

func ReadReport(path string) (Report, error) {
	var r Report
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("failed to read discovery report: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to parse discovery report: %w", err)
	}
	return r, nil
}
