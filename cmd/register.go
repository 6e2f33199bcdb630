// File: cmd/register.go
package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/service"
)

func newRegisterCmd(a *app) *cobra.Command {
	var req service.RegistrationRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Run one registration and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			components := service.NewComponents(a.cfg, prometheus.NewRegistry(), a.logger)
			defer components.Shutdown()

			res, err := components.Registrar.Register(cmd.Context(), req)
			if printErr := printJSON(cmd, res); printErr != nil {
				a.logger.Error("Failed to print result.", zap.Error(printErr))
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.FirstName, "first-name", "", "first name (default John)")
	f.StringVar(&req.LastName, "last-name", "", "last name (default Doe)")
	f.StringVar(&req.Email, "email", "", "email address (default generated)")
	f.StringVar(&req.Password, "password", "", "password (default generated)")
	f.StringVar(&req.PhoneNumber, "phone", "", "phone number to send the verification code to (default generated)")
	return cmd
}
