package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kralgram/kralgram/auth"
	"github.com/kralgram/kralgram/blob"
	"github.com/kralgram/kralgram/firehose"
	"github.com/kralgram/kralgram/handlers"
	"github.com/kralgram/kralgram/store"
	"github.com/kralgram/kralgram/ws"
)

const (
	kafkaTopic          = "kralgram-messages"
	firehoseMaxBytes    = 4096
	uploadsURLPrefix    = "/static/uploads"
	shutdownGracePeriod = 10 * time.Second
)

var (
	flagAddr     = flag.String("addr", "127.0.0.1:8000", "server address, ip:port")
	flagPidFile  = flag.String("pid-file", "kralgram.pid", "pid file")
	flagMysqlDsn = flag.String("mysql-dsn", "root:@tcp(127.0.0.1:3306)/kralgram?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci", "mysql server dsn")
	flagBlobDir  = flag.String("blob-dir", "static/uploads", "dir to save uploaded media files")

	flagEnableFirehose = flag.Bool("enable-firehose", false, "mirror persisted messages to kafka")
	flagKafkaBrokers   = flag.String("kafka-brokers", "127.0.0.1:9092", "comma separated kafka brokers")

	flagPprofDir       = flag.String("pprof-dir", "pprof", "dir to save pprof data files")
	flagDisableMetrics = flag.Bool("disable-metrics", false, "disable prometheus metrics")
)

func main() {
	flag.Parse()

	// NOTE: os.Exit() does not call defers.
	os.Exit(run())
}

func run() int {
	defer glog.Flush()

	if v := validateFlags(); v > 0 {
		return v
	}

	pid := os.Getpid()

	if err := savePid(*flagPidFile, pid); err != nil {
		return errorf("pid file: %v", err)
	}
	defer func() {
		_ = os.Remove(*flagPidFile)
	}()

	pprofDir := filepath.Join(*flagPprofDir, strconv.Itoa(pid))
	if err := os.MkdirAll(pprofDir, 0750); err != nil {
		return errorf("--pprof-dir: error create dir `%s`: %v", pprofDir, err)
	}
	defer func() {
		_ = os.RemoveAll(pprofDir)
	}()

	db, err := sql.Open("mysql", *flagMysqlDsn)
	if err != nil {
		return errorf("sql.Open error, dsn: %s, err: %v", *flagMysqlDsn, err)
	}

	db.SetConnMaxLifetime(time.Minute * 3)
	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(1)

	glog.Info("kralgram server is starting")

	if err := store.Migrate(context.Background(), db); err != nil {
		return errorf("migrate error: %v", err)
	}

	users := store.NewUserStore(db)
	groups := store.NewGroupStore(db)
	messages := store.NewMessageStore(db)

	blobs, err := blob.NewFSStore(*flagBlobDir, uploadsURLPrefix)
	if err != nil {
		return errorf("--blob-dir: %v", err)
	}

	var publisher ws.Publisher
	var fhWriter *firehose.Writer
	if *flagEnableFirehose {
		brokers := strings.Split(*flagKafkaBrokers, ",")
		fhWriter = firehose.NewWriter(brokers, kafkaTopic, firehoseMaxBytes)
		publisher = fhWriter
	}

	registry := ws.NewRegistry()
	router := ws.NewRouter(messages, groups, registry, publisher)
	hub := ws.NewHub(&auth.StoreClient{Users: users}, router, registry)

	r := mux.NewRouter()
	if !*flagDisableMetrics {
		r.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{},
		))
	}
	r.Handle("/ws/{userId}", hub)
	handlers.NewAPI(users, groups, messages, blobs).RegisterRoutes(r)
	r.PathPrefix(uploadsURLPrefix + "/").Handler(
		http.StripPrefix(uploadsURLPrefix+"/", http.FileServer(http.Dir(blobs.Dir()))))
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	httpServer := &http.Server{Addr: *flagAddr, Handler: r}

	go func() {
		glog.Infof("http server is listening %v", *flagAddr)
		if err := httpServer.ListenAndServe(); errors.Is(err, http.ErrServerClosed) {
			glog.Infof("http server closed")
		} else if err != nil {
			glog.Errorf("error serve http server: %v", err)
		}
	}()

	glog.Infof("`kill -USR1 %d` to dump goroutines; `kill -USR2 %d` to start/stop profiler; `CTRL+c` or `kill %d` to graceful stop", pid, pid, pid)

	var stopping bool

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGTERM, syscall.SIGINT)

	var prof *Profiler

	for sig := range sigCh {
		switch sig {
		case syscall.SIGUSR1:
			dumpGoroutines(pprofDir)
		case syscall.SIGUSR2:
			if prof == nil {
				prof = StartProfiler(pprofDir)
			} else {
				prof.Stop()
				prof = nil
			}
		case syscall.SIGTERM, syscall.SIGINT:
			if stopping {
				glog.Infof("kralgram server is already in stop")
				continue
			}
			stopping = true
			glog.Infof("received signal `%s`, stopping", sig.String())
			go func() {
				if prof != nil {
					prof.Stop()
				}

				ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
				defer cancel()
				_ = httpServer.Shutdown(ctx)

				hub.Close()
				if fhWriter != nil {
					_ = fhWriter.Close()
				}
				_ = db.Close()
				signal.Stop(sigCh)
				close(sigCh)
			}()
		}
	}

	glog.Info("kralgram server exited")
	return 0
}

func validateFlags() int {
	if *flagAddr == "" {
		return errorf("--addr is required")
	}
	if err := validateAddr(*flagAddr); err != nil {
		return errorf("--addr: %v", err)
	}
	if *flagPidFile == "" {
		return errorf("--pid-file is required")
	}
	if *flagPprofDir == "" {
		return errorf("--pprof-dir is required")
	}
	if *flagBlobDir == "" {
		return errorf("--blob-dir is required")
	}
	if *flagMysqlDsn == "" {
		return errorf("--mysql-dsn is required")
	}
	if *flagEnableFirehose && len(*flagKafkaBrokers) == 0 {
		return errorf("--kafka-brokers is required with --enable-firehose")
	}
	return 0
}

func validateAddr(s string) error {
	host, _, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("error split host port from `%s`: %v", s, err)
	}
	if host == "" {
		return nil
	}
	if ip := net.ParseIP(host); ip == nil {
		return fmt.Errorf("error parse IP from host `%s`", host)
	}
	return nil
}

func errorf(format string, args ...interface{}) int {
	glog.Errorf(format, args...)
	return 1
}

func savePid(name string, pid int) error {
	if _, err := os.Stat(name); err == nil {
		content, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		if len(content) > 0 {
			oldPid, err := strconv.Atoi(strings.TrimSpace(string(content)))
			if err != nil {
				return err
			}

			proc, err := os.FindProcess(oldPid)
			if err != nil {
				return err
			}
			defer proc.Release()

			if err := proc.Signal(syscall.Signal(0)); err == nil {
				return fmt.Errorf("pid file: exists with pid: %d, the process is running", oldPid)
			}
			glog.Infof("pid file exists with pid: %d, but is not running", oldPid)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("pid file: stat error: %v", err)
	}

	if err := os.WriteFile(name, []byte(strconv.Itoa(pid)), 0600); err != nil {
		return fmt.Errorf("pid file: write error: %v", err)
	}
	glog.Infof("pid file: write pid done")
	return nil
}
