package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/keepmind9/botsocket/internal/core"
	"github.com/keepmind9/botsocket/internal/dispatch"
	"github.com/keepmind9/botsocket/internal/logger"
	"github.com/keepmind9/botsocket/internal/socket"
	"github.com/keepmind9/botsocket/internal/tunnel"
	"github.com/keepmind9/botsocket/internal/webex"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the bot",
		Long:  "Register the device, listen for message notifications on the websocket and dispatch them to command handlers",
		Run: func(cmd *cobra.Command, args []string) {
			config, err := core.LoadConfig(configFile)
			if err != nil {
				log.Fatalf("Failed to load config: %v", err)
			}

			fmt.Printf("Starting botsocket with config: %s\n", configFile)
			fmt.Printf("Device name: %s\n", config.Device.Name)
			fmt.Printf("Dispatch workers: %d\n", config.Dispatch.Workers)

			logConfig := logger.Config{
				Level:        config.Logging.Level,
				File:         config.Logging.File,
				MaxSize:      config.Logging.MaxSize,
				MaxBackups:   config.Logging.MaxBackups,
				MaxAge:       config.Logging.MaxAge,
				Compress:     config.Logging.Compress,
				EnableStdout: config.Logging.EnableStdout,
			}
			if err := logger.InitLogger(logConfig); err != nil {
				log.Fatalf("Failed to initialize logger: %v", err)
			}

			logger.WithFields(logrus.Fields{
				"config_file": configFile,
				"log_level":   config.Logging.Level,
				"device_name": config.Device.Name,
			}).Info("logger-initialized")

			token, err := config.LoadToken()
			if err != nil {
				log.Fatalf("Failed to load access token: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			client := webex.NewClient(token)

			dispatcher := dispatch.NewDispatcher(client, config.Dispatch.Workers)
			if config.Dispatch.DefaultCommand != "" {
				dispatcher.SetDefault(config.Dispatch.DefaultCommand)
			}
			dispatcher.Start(ctx)

			if config.Tunnel.Enabled {
				ngrok := tunnel.NewNgrok(config.Tunnel.Port)
				url, err := ngrok.Start(ctx)
				if err != nil {
					log.Fatalf("Failed to start tunnel: %v", err)
				}
				defer ngrok.Stop()
				fmt.Printf("Webhook receiver exposed at: %s\n", url)
			}

			bot := socket.NewBotSocket(client, dispatcher, socket.Options{
				DeviceName:     config.Device.Name,
				ForceRecreate:  config.Device.ForceRecreate,
				Auth:           client.Auth(),
				BackoffInitial: config.BackoffInitialDuration(),
				BackoffMax:     config.BackoffMaxDuration(),
			})

			// Setup signal handling for graceful shutdown
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			runErrChan := make(chan error, 1)
			go func() {
				fmt.Println("\nbotsocket listening...")
				fmt.Println("Press Ctrl+C to stop")
				runErrChan <- bot.Run(ctx)
			}()

			select {
			case sig := <-sigChan:
				log.Printf("\nReceived signal: %v, shutting down gracefully...", sig)
				cancel()
				<-runErrChan
			case err := <-runErrChan:
				if err != nil && err != context.Canceled {
					log.Fatalf("Listener error: %v", err)
				}
			}

			cancel()
			dispatcher.Wait()
			log.Println("botsocket stopped")
		},
	}
)

func init() {
	startCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
}
