package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/beevik/etree"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wsn-sim/wsn-sim/sim"
	"github.com/wsn-sim/wsn-sim/sim/trace"
)

var (
	// CLI flags for the headless runner
	configPath  string // Simulation config file (XML)
	durationMs  int64  // Simulated run length (in ms)
	logLevel    string // Log verbosity level
	manualSeed  int64  // Overrides the config file's random seed when set
	metricsAddr string // Prometheus listen address, empty disables metrics
	profilePath string // Optional YAML run profile
	outputPath  string // Output file for convert, empty means stdout
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "wsn-sim",
	Short: "Discrete-event simulator for wireless sensor networks",
}

// runCmd loads a simulation config and runs it headless for the requested
// simulated duration. Exit code 0 on normal completion, 1 when an event
// callback fails.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation headless",
	Run: func(cmd *cobra.Command, args []string) {
		var profile *RunProfile
		if profilePath != "" {
			p, err := LoadRunProfile(profilePath)
			if err != nil {
				logrus.Fatalf("unable to read run profile: %v", err)
			}
			profile = p
		}
		if profile != nil {
			if !cmd.Flags().Changed("log-level") && profile.LogLevel != "" {
				logLevel = profile.LogLevel
			}
			if !cmd.Flags().Changed("duration-ms") && profile.DurationMs > 0 {
				durationMs = profile.DurationMs
			}
			if !cmd.Flags().Changed("metrics-addr") && profile.MetricsAddr != "" {
				metricsAddr = profile.MetricsAddr
			}
		}

		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if configPath == "" {
			logrus.Fatalf("Simulation config not provided. Exiting.")
		}

		s := sim.NewSimulation(nil)

		root, err := readSimulationElement(configPath)
		if err != nil {
			logrus.Fatalf("unable to read simulation config: %v", err)
		}
		var seedOverride *int64
		if cmd.Flags().Changed("seed") {
			seed := manualSeed
			seedOverride = &seed
		}
		if err := s.SetConfigXML(root, seedOverride); err != nil {
			logrus.Fatalf("unable to load simulation config: %v", err)
		}
		if profile != nil && profile.SpeedLimit != nil {
			s.SetSpeedLimit(profile.SpeedLimit)
		}

		tr := trace.NewSimulationTrace()
		s.SetTrace(tr)

		if metricsAddr != "" {
			metrics, err := sim.NewMetrics(nil)
			if err != nil {
				logrus.Fatalf("unable to register metrics: %v", err)
			}
			s.SetMetrics(metrics)
			go func() {
				http.Handle("/metrics", promhttp.Handler())
				if err := http.ListenAndServe(metricsAddr, nil); err != nil {
					logrus.Errorf("metrics listener failed: %v", err)
				}
			}()
		}

		logrus.Infof("Starting simulation %q for %d simulated ms, seed=%d",
			s.Title(), durationMs, s.RandomSeed())

		failed := false
		s.SetEventErrorHandler(func(err *sim.EventExecutionError) {
			logrus.Errorf("simulation stopped due to error: %v", err)
			failed = true
		})

		stopEvent := sim.NewTimeEvent("STOP", func(t int64) error {
			s.Stop(true)
			return nil
		})
		s.ScheduleEvent(stopEvent, s.Time()+durationMs*sim.MILLISECOND)

		startTime := time.Now()
		s.Start()
		<-s.Done()

		logrus.Infof("Simulation finished after %v:\n%s", time.Since(startTime), trace.Summarize(tr))
		if failed {
			os.Exit(1)
		}
	},
}

// convertCmd re-encodes a config file, rewriting legacy type tags to the
// current namespace.
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Re-encode a simulation config with current type tags",
	Run: func(cmd *cobra.Command, args []string) {
		if configPath == "" {
			logrus.Fatalf("Simulation config not provided. Exiting.")
		}
		root, err := readSimulationElement(configPath)
		if err != nil {
			logrus.Fatalf("unable to read simulation config: %v", err)
		}
		s := sim.NewSimulation(nil)
		if err := s.SetConfigXML(root, nil); err != nil {
			logrus.Fatalf("unable to load simulation config: %v", err)
		}

		out := os.Stdout
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				logrus.Fatalf("unable to create output file: %v", err)
			}
			defer f.Close()
			out = f
		}
		if err := writeConfig(s, out); err != nil {
			logrus.Fatalf("unable to write config: %v", err)
		}
	},
}

// readSimulationElement loads the <simulation> element from a config file,
// accepting both bare <simulation> roots and <simconf> wrappers.
func readSimulationElement(path string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if wrapper := doc.SelectElement("simconf"); wrapper != nil {
		if el := wrapper.SelectElement("simulation"); el != nil {
			return el, nil
		}
	}
	if el := doc.SelectElement("simulation"); el != nil {
		return el, nil
	}
	return nil, fmt.Errorf("%s: no simulation element", path)
}

// writeConfig encodes the simulation into the <simconf> file format.
func writeConfig(s *sim.Simulation, out *os.File) error {
	doc := etree.NewDocument()
	wrapper := doc.CreateElement("simconf")
	wrapper.AddChild(s.ConfigXML())
	doc.Indent(2)
	_, err := doc.WriteTo(out)
	return err
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "simulation config file (XML)")
	runCmd.Flags().Int64Var(&durationMs, "duration-ms", 1000, "simulated run length in milliseconds")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "log verbosity level")
	runCmd.Flags().Int64Var(&manualSeed, "seed", 0, "override the config file's random seed")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address (empty disables)")
	runCmd.Flags().StringVar(&profilePath, "profile", "", "YAML run profile")
	rootCmd.AddCommand(runCmd)

	convertCmd.Flags().StringVar(&configPath, "config", "", "simulation config file (XML)")
	convertCmd.Flags().StringVar(&outputPath, "output", "", "output file (default stdout)")
	rootCmd.AddCommand(convertCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
