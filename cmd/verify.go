// File: cmd/verify.go
package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/otp"
	"github.com/xkilldash9x/merchant-enroll/internal/service"
)

func newVerifyOTPCmd(a *app) *cobra.Command {
	var req otp.Request
	cmd := &cobra.Command{
		Use:   "verify-otp",
		Short: "Verify a phone number with its one-time code and update the profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			components := service.NewComponents(a.cfg, prometheus.NewRegistry(), a.logger)
			defer components.Shutdown()

			out, err := components.Verifier.VerifyOTP(cmd.Context(), req)
			if err != nil {
				return err
			}
			if printErr := printJSON(cmd, out); printErr != nil {
				a.logger.Error("Failed to print result.", zap.Error(printErr))
			}
			if !out.Success {
				return errVerificationFailed
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.OTPCode, "code", "", "one-time code received by SMS")
	f.StringVar(&req.PhoneNumber, "phone", "", "phone number the code was sent to")
	f.StringVar(&req.NewPhoneNumber, "new-phone", "", "phone number to set on the profile")
	f.StringVar(&req.AuthToken, "token", "", "auth token returned by registration")
	f.StringVar(&req.Email, "email", "", "account email to link the phone record to")
	return cmd
}
