package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/voiceprint/server"
)

var (
	serveAddr       string
	serveMaxBody    int64
	serveMaxSession int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP and WebSocket API",
	Long: `Serve enrollment and recognition over HTTP.

Routes:
  GET    /v1/speakers         list enrolled speakers
  GET    /v1/speakers/{id}    one speaker record
  PUT    /v1/speakers/{id}    enroll from a WAV or PCM16 body (?mixtures=)
  DELETE /v1/speakers/{id}    delete a speaker
  POST   /v1/recognize        recognize a WAV or PCM16 body (?threshold=)
  GET    /v1/stream           WebSocket: binary PCM16 in, JSON events out

Examples:
  speakerid serve --listen :8080
  curl -X PUT --data-binary @alice.wav -H 'Content-Type: audio/wav' \
      localhost:8080/v1/speakers/alice`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := getContext()
		if err != nil {
			return err
		}
		vcfg, err := resolveVoiceprint(cmd, cctx)
		if err != nil {
			return err
		}
		addr := serveAddr
		if !cmd.Flags().Changed("listen") && cctx.Listen != "" {
			addr = cctx.Listen
		}

		svc, closeSvc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer closeSvc()

		ctx, cancel := signalContext(context.Background())
		defer cancel()

		srv := server.New(svc, server.Options{
			Config:            vcfg,
			MaxBodyBytes:      serveMaxBody,
			MaxSessionSamples: serveMaxSession,
			Logger:            slog.Default(),
		})
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveAddr, "listen", ":8080", "listen address")
	f.Int64Var(&serveMaxBody, "max-body", server.DefaultMaxBodyBytes, "maximum request body in bytes")
	f.IntVar(&serveMaxSession, "max-session-samples", 0, "maximum samples per streaming session (0 = unlimited)")
	addVoiceprintFlags(serveCmd)
}
