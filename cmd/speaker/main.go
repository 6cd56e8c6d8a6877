package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/colloquium-dev/colloquium/internal/config"
	"github.com/colloquium-dev/colloquium/internal/conversation"
	"github.com/colloquium-dev/colloquium/internal/playback"
)

type sseEvent struct {
	Type conversation.EventType `json:"type"`
	Data json.RawMessage        `json:"data"`
}

type modelCompleteData struct {
	Round    int                   `json:"round"`
	Model    string                `json:"model"`
	Response conversation.Response `json:"response"`
}

type modelChunkData struct {
	Model string `json:"model"`
	Delta string `json:"delta"`
}

func displayName(id string) string {
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return id
}

func main() {
	server := flag.String("server", "http://localhost:8080", "colloquium server base URL")
	topic := flag.String("topic", "", "conversation topic")
	models := flag.String("models", "", "comma-separated model ids")
	rounds := flag.Int("rounds", 1, "number of rounds")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})

	if *topic == "" || *models == "" {
		fmt.Fprintln(os.Stderr, "usage: speaker -topic <topic> -models <id,id,...> [-rounds n] [-server url]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	var refs []conversation.ModelRef
	voiceByModel := map[string]string{}
	for i, id := range strings.Split(*models, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		refs = append(refs, conversation.ModelRef{ID: id, Name: displayName(id)})
		voiceByModel[id] = playback.VoiceFor(i)
	}

	synth := playback.NewOpenAISynthesizer(cfg.Speech.BaseURL, cfg.Speech.APIKey, cfg.Speech.Model)
	pipe := playback.NewPipeline(context.Background(), synth, playback.NewSpeakerPlayer(), logger)
	pipe.Notice = func(msg string) { fmt.Fprintln(os.Stderr, "! "+msg) }

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		pipe.Stop()
		os.Exit(1)
	}()

	body, err := json.Marshal(map[string]any{
		"topic":         *topic,
		"models":        refs,
		"rounds":        *rounds,
		"response_type": conversation.ResponseVoice,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to encode request")
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*server, "/")+"/api/conversations/stream", bytes.NewReader(body))
	if err != nil {
		logger.WithError(err).Fatal("failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.WithError(err).Fatal("failed to reach server")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.WithField("status", resp.StatusCode).Fatal("server rejected the conversation")
	}

	sc := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 2*1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var ev sseEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case conversation.EventModelStart:
			fmt.Println()
		case conversation.EventModelChunk:
			var d modelChunkData
			if err := json.Unmarshal(ev.Data, &d); err == nil {
				fmt.Print(d.Delta)
			}
		case conversation.EventModelComplete:
			var d modelCompleteData
			if err := json.Unmarshal(ev.Data, &d); err != nil {
				continue
			}
			name := d.Response.Model.Name
			pipe.Enqueue(&playback.Item{
				ID:      fmt.Sprintf("%s-r%d", d.Response.Model.ID, d.Round),
				Text:    d.Response.Text,
				Voice:   voiceByModel[d.Response.Model.ID],
				OnStart: func() { fmt.Printf("\n[speaking: %s]\n", name) },
			})
		case conversation.EventModelError:
			var d modelCompleteData
			if err := json.Unmarshal(ev.Data, &d); err == nil {
				fmt.Fprintf(os.Stderr, "\n[%s failed: %s]\n", d.Model, d.Response.Text)
			}
		case conversation.EventConversationComplete:
			fmt.Println("\n[conversation complete]")
		}
	}
	if err := sc.Err(); err != nil {
		logger.WithError(err).Error("stream read failed")
	}

	pipe.Wait()
}
