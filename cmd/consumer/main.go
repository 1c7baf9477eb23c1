package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freundallein/commonmq/chassis/config"
	log "github.com/freundallein/commonmq/chassis/logging"
	"github.com/freundallein/commonmq/chassis/queue"
	"github.com/freundallein/commonmq/consumer"
)

func main() {
	appCfg, err := config.Read()
	if err != nil {
		log.WithFields(log.Fields{
			"event": "config_read_failed",
		}).Fatal(err)
	}
	log.Init("consumer", appCfg.Consumer.LogLevel)

	queueCfg := appCfg.QueueConfig()
	conn, err := queue.ParseURL(queueCfg.Queue)
	if err != nil {
		log.WithFields(log.Fields{
			"event": "queue_url_invalid",
		}).Fatal(err)
	}
	client, err := queue.New(queueCfg)
	if err != nil {
		log.WithFields(log.Fields{
			"event": "init_queue_failed",
		}).Fatal(err)
	}
	defer client.Close()
	metrics, err := queue.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.WithFields(log.Fields{
			"event": "init_metrics_failed",
		}).Fatal(err)
	}
	client = queue.Instrument(client, conn.Protocol(), metrics)
	log.WithFields(log.Fields{
		"event":    "init_service",
		"protocol": conn.Protocol(),
	}).Info("service initialized")

	cfg := &consumer.Config{
		Queue: client,
		Handlers: map[string]consumer.Handler{
			"log": consumer.HandleLog,
		},
		Workers:           appCfg.Consumer.Workers,
		VisibilityTimeout: appCfg.Consumer.VisibilityTimeout,
	}
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	var group sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	consumer.Run(ctx, cfg, &group)
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:    appCfg.Consumer.MetricsAddr,
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen: ", err)
		}
	}()
	<-done
	log.WithFields(log.Fields{
		"event": "ctx_cancel",
	}).Info("received syscall")
	cancel()
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error("server shutdown failed: ", err)
	}
	group.Wait()
}
