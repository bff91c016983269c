package cmd

import (
	"context"
	"log"

	"github.com/equinix-labs/otel-init-go/otelinit"
	"github.com/spf13/cobra"

	"github.com/metal-toolbox/sumflash/internal/app"
	"github.com/metal-toolbox/sumflash/internal/install"
	"github.com/metal-toolbox/sumflash/internal/metrics"
	"github.com/metal-toolbox/sumflash/internal/model"
	"github.com/metal-toolbox/sumflash/internal/version"
)

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Run a SUM firmware update against a server",
	Run: func(cmd *cobra.Command, args []string) {
		runUpdate(cmd.Context())
	},
}

// run command flags
var (
	imageURL   string
	checksum   string
	components string
	addr       string
	user       string
	pass       string
	vendor     string
)

func runUpdate(ctx context.Context) {
	sumflash, err := app.New(cfgFile, logLevel)
	if err != nil {
		log.Fatal(err)
	}

	// serve metrics endpoint
	metrics.ListenAndServe()
	version.ExportBuildInfoMetric()

	ctx, otelShutdown := otelinit.InitOpenTelemetry(ctx, model.AppName)
	defer otelShutdown(ctx)

	// Setup cancel context with cancel func.
	ctx, cancelFunc := context.WithCancel(ctx)

	// routine listens for termination signal and cancels the context
	go func() {
		<-sumflash.TermCh
		sumflash.Logger.Info("got TERM signal, exiting...")
		cancelFunc()
	}()

	request := &model.UpdateRequest{
		ImageURL:    imageURL,
		Checksum:    checksum,
		Components:  model.ParseComponents(components),
		BmcAddress:  addr,
		BmcUsername: user,
		BmcPassword: pass,
		Vendor:      vendor,
	}

	installer := install.New(sumflash.Config, sumflash.Logger)

	summary, err := installer.Install(ctx, request)
	if err != nil {
		sumflash.Logger.Fatal(err)
	}

	sumflash.Logger.Info(summary)
}

func init() {
	cmdRun.PersistentFlags().StringVar(&imageURL, "image-url", "", "URL of the SPP ISO to attach over virtual media")
	cmdRun.PersistentFlags().StringVar(&checksum, "checksum", "", "Expected checksum of the ISO - md5sum: or sha256: prefixed, md5 assumed without a prefix")
	cmdRun.PersistentFlags().StringVar(&components, "components", "", "Comma separated component identifiers to restrict the update to, all components are updated when unset")
	cmdRun.PersistentFlags().StringVar(&addr, "addr", "", "BMC host address")
	cmdRun.PersistentFlags().StringVar(&user, "user", "", "BMC user")
	cmdRun.PersistentFlags().StringVar(&pass, "pass", "", "BMC user password")
	cmdRun.PersistentFlags().StringVar(&vendor, "vendor", "", "Server vendor, determines the BMC driver in use")

	required := []string{"image-url", "checksum", "addr", "user", "pass"}
	for _, r := range required {
		if err := cmdRun.MarkPersistentFlagRequired(r); err != nil {
			log.Fatal(err)
		}
	}

	rootCmd.AddCommand(cmdRun)
}
