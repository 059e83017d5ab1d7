package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/okian/coachplan/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.CalcParallelism, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.RulesPath, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("COACHPLAN_ADDR", ":8080")
			_ = os.Setenv("COACHPLAN_QUEUE_SIZE", "64")
			_ = os.Setenv("COACHPLAN_WORKER_COUNT", "16")
			_ = os.Setenv("COACHPLAN_DEDUPE_SIZE", "250000")
			_ = os.Setenv("COACHPLAN_RULES_PATH", "/etc/coachplan/rules.yaml")
			_ = os.Setenv("COACHPLAN_LOG_FORMAT", "json")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 250000)
				convey.So(cfg.RulesPath, convey.ShouldEqual, "/etc/coachplan/rules.yaml")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# plan service
addr: ":9090"  # inline comment
queue_size: 300
worker_count: 4
store: pebble
data_dir: /var/lib/coachplan
max_plan_list: 20
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("COACHPLAN_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.Store, convey.ShouldEqual, config.StorePebble)
				convey.So(cfg.DataDir, convey.ShouldEqual, "/var/lib/coachplan")
				convey.So(cfg.MaxPlanList, convey.ShouldEqual, 20)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
queue_size: 300
worker_count: 4
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("COACHPLAN_CONFIG", tmpFile)
			_ = os.Setenv("COACHPLAN_ADDR", ":8080")
			_ = os.Setenv("COACHPLAN_WORKER_COUNT", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("COACHPLAN_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("COACHPLAN_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("COACHPLAN_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		ctx := context.Background()
		cases := []struct {
			msg string
			env map[string]string
		}{
			{"addr must not be empty", map[string]string{"COACHPLAN_ADDR": ""}},
			{"worker_count must be positive", map[string]string{"COACHPLAN_WORKER_COUNT": "0"}},
			{"queue_size must be positive", map[string]string{"COACHPLAN_QUEUE_SIZE": "-1"}},
			{"dedupe_size must be positive", map[string]string{"COACHPLAN_DEDUPE_SIZE": "0"}},
			{"max_plan_list must be positive", map[string]string{"COACHPLAN_MAX_PLAN_LIST": "0"}},
			{"log_level must be debug", map[string]string{"COACHPLAN_LOG_LEVEL": "loud"}},
			{"log_format must be text or json", map[string]string{"COACHPLAN_LOG_FORMAT": "xml"}},
			{"unknown store", map[string]string{"COACHPLAN_STORE": "redis"}},
			{"data_dir is required", map[string]string{"COACHPLAN_STORE": "pebble", "COACHPLAN_DATA_DIR": ""}},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.msg, func() {
				for k, v := range tc.env {
					_ = os.Setenv(k, v)
				}
				defer clearConfigEnvVars()

				cfg, err := config.Load(ctx)

				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, tc.msg)
			})
		}
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"COACHPLAN_CONFIG",
		"COACHPLAN_ADDR",
		"COACHPLAN_QUEUE_SIZE",
		"COACHPLAN_WORKER_COUNT",
		"COACHPLAN_DEDUPE_SIZE",
		"COACHPLAN_RULES_PATH",
		"COACHPLAN_LOG_LEVEL",
		"COACHPLAN_LOG_FORMAT",
		"COACHPLAN_STORE",
		"COACHPLAN_DATA_DIR",
		"COACHPLAN_MAX_PLAN_LIST",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "coachplan-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
