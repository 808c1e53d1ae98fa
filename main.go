/*
 * Commadpt - Main process
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"
	"golang.org/x/sync/errgroup"

	parser "github.com/rcornwell/commadpt/command/parser"
	reader "github.com/rcornwell/commadpt/command/reader"
	config "github.com/rcornwell/commadpt/config/configparser"
	"github.com/rcornwell/commadpt/config/lineconfig"
	"github.com/rcornwell/commadpt/emu/line"
	"github.com/rcornwell/commadpt/util/debug"
	logger "github.com/rcornwell/commadpt/util/logger"
	"github.com/rcornwell/commadpt/util/metrics"

	_ "github.com/rcornwell/commadpt/config/debugconfig"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "commadpt.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Log debug to console")
	optMetrics := getopt.StringLong("metrics", 'm', "", "Address to serve metrics on")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var out io.Writer
	if *optLogFile != "" {
		file, err := os.Create(*optLogFile)
		if err != nil {
			slog.Error("Unable to create log file", "error", err)
			os.Exit(1)
		}
		defer file.Close()
		out = file
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	if *optDebug {
		programLevel.Set(slog.LevelDebug)
	}
	Logger := slog.New(logger.NewHandler(out, &slog.HandlerOptions{Level: programLevel}, *optDebug))
	slog.SetDefault(Logger)

	Logger.Info("Commadpt Started")
	if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
		Logger.Error("Configuration file can't be found", "file", *optConfig)
		os.Exit(1)
	}

	if err := loadConfig(*optConfig); err != nil {
		Logger.Error(err.Error())
		_ = line.CloseAll()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)

	if *optMetrics != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: *optMetrics, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			Logger.Info("Serving metrics", "address", *optMetrics)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			return server.Shutdown(shutCtx)
		})
	}

	console := parser.NewConsole(os.Stdout)
	go func() {
		reader.ConsoleReader(console)
		cancel()
	}()

	// Wait on quit or signal.
	<-ctx.Done()
	cancel()

	if err := line.CloseAll(); err != nil {
		Logger.Error("Line shutdown", "error", err)
	}
	console.Wait()
	if err := g.Wait(); err != nil {
		Logger.Error(err.Error())
	}
	_ = debug.Close()
	Logger.Info("Lines stopped.")
}

// Load configuration file, YAML is chosen by extension.
func loadConfig(name string) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return lineconfig.LoadYAML(name)
	}
	return config.LoadConfigFile(name)
}
