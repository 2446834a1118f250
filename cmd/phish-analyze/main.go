package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/di"
	"github.com/mikey/phish-triage/internal/mailparse"
	"github.com/mikey/phish-triage/internal/report"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run analyzes a single email from a file or stdin and prints the result
func run(flags *di.CLIFlags, logger *zap.Logger, analyzer *core.Analyzer, modelClient core.ModelClient) error {
	defer logger.Sync()

	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file %s: %w", flags.InputFile, err)
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	email, err := mailparse.Parse(bufio.NewReader(emailReader))
	if err != nil {
		return fmt.Errorf("failed to parse email: %w", err)
	}

	record := analyzer.Analyze(context.Background(), email)

	if flags.JSONLog {
		encoded, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode analysis record: %w", err)
		}
		fmt.Println(string(encoded))
	} else {
		fmt.Print(report.Render(email, record))
	}

	// Close any resources that need closing
	if closer, ok := modelClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close model client", zap.Error(err))
		}
	}

	// Exit codes mirror the verdict so shell pipelines can branch on it
	switch record.Verdict {
	case core.VerdictMalicious:
		os.Exit(2)
	case core.VerdictSuspicious:
		os.Exit(3)
	}
	return nil
}
