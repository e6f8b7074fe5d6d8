package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "schedule", "agents"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestScheduleCmdIncludesSubcommands(t *testing.T) {
	cmd := buildScheduleCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, name := range []string{"list", "add", "remove"} {
		if !names[name] {
			t.Fatalf("expected schedule subcommand %q to be registered", name)
		}
	}
}

func TestAgentsCmdIncludesSubcommands(t *testing.T) {
	cmd := buildAgentsCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, name := range []string{"list", "reload"} {
		if !names[name] {
			t.Fatalf("expected agents subcommand %q to be registered", name)
		}
	}
}
