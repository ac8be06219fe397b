package extmatcher

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/ecoledger/carbonsync-backend/internal/domain/matcher"
)

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}

func writeCompanies(path string, companies []matcher.Company) error {
	rows := [][]string{{"companyName", "_id"}}
	for _, c := range companies {
		rows = append(rows, []string{c.Name, c.ID})
	}
	return writeCSV(path, rows)
}

func writeTransactions(path string, txs []matcher.Unresolved) error {
	rows := [][]string{{
		"transaction_id", "account_id", "name", "merchant_name",
		"amount", "date", "category_id",
	}}
	for _, tx := range txs {
		rows = append(rows, []string{
			tx.ExternalID,
			tx.AccountID,
			tx.Name,
			tx.MerchantName,
			strconv.FormatFloat(tx.Amount, 'f', -1, 64),
			tx.Date,
			tx.CategoryID,
		})
	}
	return writeCSV(path, rows)
}

func readTransactions(path string) ([]matcher.Unresolved, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	var txs []matcher.Unresolved
	for i, row := range rows {
		if i == 0 || len(row) < 7 {
			continue
		}
		amount, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("bad amount %q in %s row %d: %w", row[4], path, i+1, err)
		}
		txs = append(txs, matcher.Unresolved{
			ExternalID:   row[0],
			AccountID:    row[1],
			Name:         row[2],
			MerchantName: row[3],
			Amount:       amount,
			Date:         row[5],
			CategoryID:   row[6],
		})
	}
	return txs, nil
}

func writeManualMatches(path string, matches []matcher.NameMatch) error {
	rows := [][]string{{"original", "companyName", "_id"}}
	for _, m := range matches {
		rows = append(rows, []string{m.Original, m.CompanyName, m.CompanyID})
	}
	return writeCSV(path, rows)
}

func writeFalsePositives(path string, matches []matcher.NameMatch) error {
	rows := [][]string{{"original", "companyName"}}
	for _, m := range matches {
		rows = append(rows, []string{m.Original, m.CompanyName})
	}
	return writeCSV(path, rows)
}

func readMatched(path string) ([]matcher.Match, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	var matches []matcher.Match
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		matches = append(matches, matcher.Match{
			Original:    row[0],
			CompanyName: row[1],
			CompanyID:   row[2],
		})
	}
	return matches, nil
}

func readUnmatched(path string) ([]matcher.UnmatchedCount, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	var counts []matcher.UnmatchedCount
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		count, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("bad count %q in %s row %d: %w", row[1], path, i+1, err)
		}
		counts = append(counts, matcher.UnmatchedCount{
			Original: row[0],
			Count:    count,
		})
	}
	return counts, nil
}
