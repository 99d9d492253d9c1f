package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	speechmodel "github.com/zhouzirui/standup/backend/internal/model/speech"
	"github.com/zhouzirui/standup/backend/internal/service/speech"
)

func newSpeakCmd(a *app) *cobra.Command {
	var (
		out    string
		voice  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesize text with the configured voice and write the audio file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := speech.NewService(a.cfg.Speech)
			if err != nil {
				return err
			}

			if out == "" {
				out = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), format)
			}

			resp, err := svc.SynthesizeSpeech(cmd.Context(), &speechmodel.TTSRequest{
				SessionID: "standupctl",
				Text:      strings.Join(args, " "),
				Voice:     voice,
				Format:    format,
			})
			if err != nil {
				return err
			}

			if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}
			a.logger.Info("speech synthesized", "out", out, "bytes", len(resp.AudioData), "duration_ms", resp.Duration)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default tts-output-<unix>.<format>)")
	cmd.Flags().StringVar(&voice, "voice", "", "voice (defaults to TTS_VOICE)")
	cmd.Flags().StringVar(&format, "format", "mp3", "audio format")
	return cmd
}

func newTranscribeCmd(a *app) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file with the configured speech-to-text model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := speech.NewService(a.cfg.Speech)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			format := strings.TrimPrefix(strings.ToLower(filepath.Ext(args[0])), ".")
			resp, err := svc.TranscribeAudio(cmd.Context(), &speechmodel.ASRRequest{
				SessionID: "standupctl",
				AudioData: f,
				Filename:  filepath.Base(args[0]),
				Format:    format,
				Language:  language,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&language, "lang", "", "language code (defaults to STT_LANGUAGE)")
	return cmd
}
