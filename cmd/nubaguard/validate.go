package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/elaichix/NubaGuard-AI/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and exit",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}
	rootCmd.AddCommand(cmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	names := reg.Names()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: ok\n", configPath)
	for _, slot := range []struct {
		kind  string
		entry config.ProviderEntry
	}{
		{"llm", cfg.Providers.LLM},
		{"stt", cfg.Providers.STT},
		{"tts", cfg.Providers.TTS},
		{"faces", cfg.Providers.Faces},
		{"objects", cfg.Providers.Objects},
	} {
		if !slot.entry.Configured() {
			continue
		}
		status := "built in"
		if !slices.Contains(names[slot.kind], slot.entry.Name) {
			status = "not registered"
		}
		fmt.Fprintf(out, "  %-8s %-12s %s\n", slot.kind, slot.entry.Name, status)
	}
	return nil
}
