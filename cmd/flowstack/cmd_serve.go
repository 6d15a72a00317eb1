package main

import (
	"github.com/spf13/cobra"

	"github.com/flowstack-ai/flowstack/internal/server"
	"github.com/flowstack-ai/flowstack/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		records := store.NewMemory()
		var chat store.ChatStore = records
		if rt.redis != nil {
			chat = store.NewRedisChat(rt.redis)
		}

		srv := server.New(records, chat, rt.retrieval, rt.executor, rt.cfg.Server.UploadDir)
		return srv.ListenAndServe(rt.cfg.Server.Port, rt.cfg.Server.ShutdownTimeout)
	},
}
