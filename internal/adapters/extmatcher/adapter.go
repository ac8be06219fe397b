// Package extmatcher adapts an external fuzzy-matching process to the
// matcher.Engine port. Input and output travel through CSV files in a
// working directory; the delegate is invoked once per run with positional
// arguments and the pipeline blocks until it exits.
package extmatcher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ecoledger/carbonsync-backend/internal/domain/matcher"
)

const (
	companiesFile     = "companies.csv"
	transactionsFile  = "transactions.csv"
	manualMatchesFile = "Manual_matches.csv"
	falsePosFile      = "False_pos.csv"
	matchedFile       = "matchedUnique.csv"
	unmatchedFile     = "unmatched.csv"
)

// Adapter spawns the configured delegate command and exchanges CSV files
// with it. It satisfies matcher.Engine.
type Adapter struct {
	command string
	workDir string
	logger  *slog.Logger
}

func New(command, workDir string, logger *slog.Logger) *Adapter {
	return &Adapter{
		command: command,
		workDir: workDir,
		logger:  logger.With("component", "extmatcher"),
	}
}

// Match writes the interchange files, runs the delegate, and reads its two
// output files back. A non-zero exit is a hard failure; whatever the
// delegate wrote to stderr becomes the error detail.
func (a *Adapter) Match(ctx context.Context, req matcher.Request) (*matcher.Result, error) {
	if a.command == "" {
		return nil, fmt.Errorf("no matcher command configured")
	}
	if err := os.MkdirAll(a.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create matcher work dir: %w", err)
	}

	companiesPath := filepath.Join(a.workDir, companiesFile)
	transactionsPath := filepath.Join(a.workDir, transactionsFile)
	manualPath := filepath.Join(a.workDir, manualMatchesFile)
	falsePosPath := filepath.Join(a.workDir, falsePosFile)
	matchedPath := filepath.Join(a.workDir, matchedFile)
	unmatchedPath := filepath.Join(a.workDir, unmatchedFile)

	if err := writeCompanies(companiesPath, req.Companies); err != nil {
		return nil, err
	}
	if err := writeTransactions(transactionsPath, req.Transactions); err != nil {
		return nil, err
	}
	if err := writeManualMatches(manualPath, req.ManualMatches); err != nil {
		return nil, err
	}
	if err := writeFalsePositives(falsePosPath, req.FalsePositives); err != nil {
		return nil, err
	}

	args := []string{
		matchedPath,
		unmatchedPath,
		transactionsPath,
		companiesPath,
		manualPath,
		falsePosPath,
		strconv.FormatFloat(req.Thresholds.Lower, 'f', -1, 64),
		strconv.FormatFloat(req.Thresholds.Upper, 'f', -1, 64),
	}

	a.logger.Info("invoking matcher delegate",
		"command", a.command,
		"transactions", len(req.Transactions),
		"companies", len(req.Companies))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.command, args...)
	cmd.Dir = a.workDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return nil, fmt.Errorf("matcher delegate failed: %w: %s", err, detail)
	}

	matched, err := readMatched(matchedPath)
	if err != nil {
		return nil, err
	}
	unmatched, err := readUnmatched(unmatchedPath)
	if err != nil {
		return nil, err
	}

	a.logger.Info("matcher delegate finished",
		"matched", len(matched),
		"unmatched", len(unmatched))

	return &matcher.Result{Matched: matched, Unmatched: unmatched}, nil
}
