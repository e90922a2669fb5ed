package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	got := strings.Join(names, ",")
	if got != "down,up,version" {
		t.Errorf("subcommands = %s, want down,up,version", got)
	}
}

func TestRootCmd_RequiresDatabaseURL(t *testing.T) {
	os.Clearenv()
	for _, sub := range []string{"up", "down", "version"} {
		t.Run(sub, func(t *testing.T) {
			root := newRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetArgs([]string{sub})
			err := root.Execute()
			if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
				t.Errorf("Execute = %v, want DATABASE_URL error", err)
			}
		})
	}
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"up", "extra"})
	if err := root.Execute(); err == nil {
		t.Error("extra arguments should be rejected")
	}
}
