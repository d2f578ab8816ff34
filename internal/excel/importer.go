package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/example/drillbot/internal/database"
	"github.com/example/drillbot/pkg/models"
)

// ImportConfig defines a deck import. Rows are front, back, topic,
// difficulty; topic and difficulty are optional.
type ImportConfig struct {
	FilePath   string // Path to the Excel or CSV file
	DeckName   string // Target deck; created if missing
	SheetName  string // Name of the sheet to import (Excel only)
	SkipHeader bool   // Skip the first row
}

// DefaultImportConfig returns the default import configuration.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SheetName:  "Sheet1",
		SkipHeader: true,
	}
}

// ImportResult holds the outcome of an import operation.
type ImportResult struct {
	TotalProcessed int
	DeckCreated    bool
	Created        int
	Skipped        int
	Errors         []string
}

// ImportDeck imports flashcards for the agent from an Excel or CSV file.
// Rows missing a front or back are skipped and reported, not fatal.
func ImportDeck(ctx context.Context, store database.Store, agentID string, cfg ImportConfig, now time.Time) (*ImportResult, error) {
	rows, err := readRows(cfg)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	deck, err := store.GetDeckByName(ctx, agentID, cfg.DeckName)
	if errors.Is(err, database.ErrNotFound) {
		deck = &models.FlashcardDeck{
			ID:      uuid.NewString(),
			AgentID: agentID,
			Name:    cfg.DeckName,
		}
		if err := store.CreateDeck(ctx, deck); err != nil {
			return nil, err
		}
		result.DeckCreated = true
	} else if err != nil {
		return nil, err
	}

	start := 0
	if cfg.SkipHeader {
		start = 1
	}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		result.TotalProcessed++

		front, back := cell(row, 0), cell(row, 1)
		if front == "" || back == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: missing front or back", i+1))
			continue
		}
		topic := cell(row, 2)
		difficulty := 1
		if raw := cell(row, 3); raw != "" {
			d, err := strconv.Atoi(raw)
			if err != nil || d < 1 || d > 5 {
				result.Skipped++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: difficulty %q out of [1, 5]", i+1, raw))
				continue
			}
			difficulty = d
		}

		card := models.NewFlashcard(uuid.NewString(), deck.ID, front, back, topic, difficulty, now)
		if err := store.CreateCard(ctx, &card); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		result.Created++
	}
	return result, nil
}

// readRows loads rows from the file, dispatching on extension.
func readRows(cfg ImportConfig) ([][]string, error) {
	switch ext := strings.ToLower(filepath.Ext(cfg.FilePath)); ext {
	case ".xlsx", ".xlsm":
		return readExcelRows(cfg)
	case ".csv":
		return readCSVRows(cfg.FilePath)
	default:
		return nil, fmt.Errorf("excel: unsupported file extension %q", ext)
	}
}

func readExcelRows(cfg ImportConfig) ([][]string, error) {
	f, err := excelize.OpenFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("excel: open %s: %w", cfg.FilePath, err)
	}
	defer f.Close()
	rows, err := f.GetRows(cfg.SheetName)
	if err != nil {
		return nil, fmt.Errorf("excel: read sheet %q: %w", cfg.SheetName, err)
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("excel: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("excel: read csv %s: %w", path, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
