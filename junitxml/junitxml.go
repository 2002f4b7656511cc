// Package junitxml reads JUnit-style XML test reports as emitted by JVM
// build tools (Gradle, Maven Surefire) into an in-memory form.
package junitxml

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/editorkit/testbridge/metrics"
)

// DefaultReportSuffix is the file suffix report files must carry to be read.
const DefaultReportSuffix = ".xml"

// TestSuites is the optional <testsuites> wrapper some tools emit.
type TestSuites struct {
	XMLName xml.Name    `xml:"testsuites"`
	Suites  []TestSuite `xml:"testsuite"`
}

// TestSuite is one <testsuite> element, usually one per report file.
type TestSuite struct {
	XMLName   xml.Name   `xml:"testsuite"`
	Name      string     `xml:"name,attr"`
	Tests     int        `xml:"tests,attr"`
	Failures  int        `xml:"failures,attr"`
	Errors    int        `xml:"errors,attr"`
	Time      string     `xml:"time,attr"`
	TestCases []TestCase `xml:"testcase"`
}

// TestCase is one <testcase> record. Name may carry trailing parameter text
// in parentheses for parameterized tests.
type TestCase struct {
	XMLName   xml.Name `xml:"testcase"`
	Name      string   `xml:"name,attr"`
	ClassName string   `xml:"classname,attr"`
	Time      string   `xml:"time,attr"`
	Failure   *Failure `xml:"failure"`
	Skipped   *Skipped `xml:"skipped"`
}

// Failure carries the failure type, message and the stack trace text body.
type Failure struct {
	Type     string `xml:"type,attr"`
	Message  string `xml:"message,attr"`
	Contents string `xml:",chardata"`
}

// Skipped marks a skipped test case.
type Skipped struct {
	Message string `xml:"message,attr"`
}

// Parser reads a directory of report files.
type Parser struct {
	suffix string
	log    log.Logger
}

// NewParser creates a parser for files ending in suffix. An empty suffix
// selects DefaultReportSuffix.
func NewParser(suffix string, logger log.Logger) *Parser {
	if suffix == "" {
		suffix = DefaultReportSuffix
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Parser{suffix: suffix, log: logger}
}

// ParseDirectory reads every report file directly inside dir. A missing or
// empty directory path yields an empty result, not an error: absent reports
// are a valid precondition for "nothing ran yet". A malformed file is
// dropped with a diagnostic so one bad report cannot blank the rest.
func (p *Parser) ParseDirectory(dir string) ([]TestSuite, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			p.log.Debug("Report directory does not exist", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read report directory %s: %w", dir, err)
	}

	var suites []TestSuite
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), p.suffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		parsed, err := parseFile(path)
		if err != nil {
			p.log.Warn("Skipping malformed report file", "file", path, "err", err)
			metrics.RecordReportParseFailure()
			continue
		}
		suites = append(suites, parsed...)
	}
	return suites, nil
}

// parseFile accepts either a bare <testsuite> root or a <testsuites>
// wrapper around several suites.
func parseFile(path string) ([]TestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var single TestSuite
	if err := xml.Unmarshal(data, &single); err == nil {
		return []TestSuite{single}, nil
	}

	var wrapper TestSuites
	if err := xml.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse report XML: %w", err)
	}
	return wrapper.Suites, nil
}
