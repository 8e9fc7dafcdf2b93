package core

import (
	"fmt"
	"testing"

	"github.com/mikey-austin/mtogo/pkg/spark"
)

func TestErrorForResponse(t *testing.T) {
	tests := []struct {
		err      spark.Error
		expected int
	}{
		{spark.Error{Kind: spark.DeserializingCommand, Detail: "bad"}, ExitUsage},
		{spark.Error{Kind: spark.RequestFailed, Detail: spark.DetailNotInPlaylist}, ExitNotFound},
		{spark.Error{Kind: spark.RequestFailed, Detail: spark.DetailNothingPlaying}, ExitNotFound},
		{spark.Error{Kind: spark.IoError, Detail: spark.DetailNothingPlaying}, ExitRuntime},
		{spark.Error{Kind: spark.RequestFailed, Detail: "unsupported: Reload"}, ExitRuntime},
		{spark.Error{Kind: spark.IoError, Detail: "disk"}, ExitRuntime},
		{spark.Error{Kind: spark.RelayError, Detail: "relay"}, ExitRuntime},
	}

	for _, test := range tests {
		test := test
		err := ErrorForResponse(&test.err)
		if err.Code != test.expected {
			t.Fatalf("%s(%s) expected %d got %d", test.err.Kind, test.err.Detail, test.expected, err.Code)
		}
	}
}

func TestExitCodeUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &CLIError{Code: ExitUsage, Msg: "x"})
	if got := ExitCode(wrapped); got != ExitUsage {
		t.Fatalf("expected usage exit, got %d", got)
	}
	if got := ExitCode(nil); got != ExitOK {
		t.Fatalf("expected ok, got %d", got)
	}
}
