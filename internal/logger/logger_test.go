// Copyright 2024 The EtherDFS Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

// redirectLogsToGivenBuffer points the default logger at buf with the
// given severity threshold.
func redirectLogsToGivenBuffer(buf *bytes.Buffer, level string) {
	var programLevel = new(slog.LevelVar)
	defaultLogger = slog.New(
		defaultLoggerFactory.createJsonOrTextHandler(buf, programLevel, "TestLogs: "),
	)
	setLoggingLevel(level, programLevel)
}

// fetchLogOutput runs each log call at the configured severity and collects
// what each one produced.
func fetchLogOutput(level string) []string {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, level)

	functions := []func(){
		func() { Tracef("www.traceExample.com") },
		func() { Debugf("www.debugExample.com") },
		func() { Infof("www.infoExample.com") },
		func() { Warnf("www.warningExample.com") },
		func() { Errorf("www.errorExample.com") },
	}

	var output []string
	for _, f := range functions {
		f()
		output = append(output, buf.String())
		buf.Reset()
	}
	return output
}

func validateOutput(t *testing.T, expected, output []string) {
	t.Helper()
	for i := range output {
		if expected[i] == "" {
			assert.Equal(t, expected[i], output[i])
		} else {
			assert.True(t, regexp.MustCompile(expected[i]).MatchString(output[i]),
				"output %q must match %q", output[i], expected[i])
		}
	}
}

const (
	traceString   = `severity=TRACE message="TestLogs: www.traceExample.com"`
	debugString   = `severity=DEBUG message="TestLogs: www.debugExample.com"`
	infoString    = `severity=INFO message="TestLogs: www.infoExample.com"`
	warningString = `severity=WARNING message="TestLogs: www.warningExample.com"`
	errorString   = `severity=ERROR message="TestLogs: www.errorExample.com"`
)

func TestTextFormatLogs_LogLevelOFF(t *testing.T) {
	validateOutput(t, []string{"", "", "", "", ""}, fetchLogOutput(OFF))
}

func TestTextFormatLogs_LogLevelERROR(t *testing.T) {
	validateOutput(t, []string{"", "", "", "", errorString}, fetchLogOutput(ERROR))
}

func TestTextFormatLogs_LogLevelWARNING(t *testing.T) {
	validateOutput(t, []string{"", "", "", warningString, errorString}, fetchLogOutput(WARNING))
}

func TestTextFormatLogs_LogLevelINFO(t *testing.T) {
	validateOutput(t, []string{"", "", infoString, warningString, errorString}, fetchLogOutput(INFO))
}

func TestTextFormatLogs_LogLevelDEBUG(t *testing.T) {
	validateOutput(t, []string{"", debugString, infoString, warningString, errorString}, fetchLogOutput(DEBUG))
}

func TestTextFormatLogs_LogLevelTRACE(t *testing.T) {
	validateOutput(t, []string{traceString, debugString, infoString, warningString, errorString}, fetchLogOutput(TRACE))
}

func TestJSONFormatLogs(t *testing.T) {
	orig := defaultLoggerFactory.format
	defaultLoggerFactory.format = "json"
	defer func() { defaultLoggerFactory.format = orig }()

	output := fetchLogOutput(INFO)

	expected := `"severity":"INFO","message":"TestLogs: www.infoExample.com"`
	assert.True(t, regexp.MustCompile(expected).MatchString(output[2]),
		"output %q must match %q", output[2], expected)
}

func TestSetLoggingLevel(t *testing.T) {
	testCases := []struct {
		inputLevel           string
		expectedProgramLevel slog.Level
	}{
		{TRACE, LevelTrace},
		{DEBUG, LevelDebug},
		{INFO, LevelInfo},
		{WARNING, LevelWarn},
		{ERROR, LevelError},
		{OFF, LevelOff},
	}

	for _, tc := range testCases {
		programLevel := new(slog.LevelVar)
		setLoggingLevel(tc.inputLevel, programLevel)
		assert.Equal(t, tc.expectedProgramLevel, programLevel.Level())
	}
}

func TestSeverityName(t *testing.T) {
	assert.Equal(t, TRACE, severityName(LevelTrace))
	assert.Equal(t, DEBUG, severityName(LevelDebug))
	assert.Equal(t, INFO, severityName(LevelInfo))
	assert.Equal(t, WARNING, severityName(LevelWarn))
	assert.Equal(t, ERROR, severityName(LevelError))
}
