package verification

import (
	"fmt"
	"time"
)

func signupMessage(name, code string, ttl time.Duration) (string, string) {
	return "Verify your email", fmt.Sprintf(
		"Hi %s,\n\nYour verification code is %s.\nIt expires in %d minutes.\n\nIf you did not sign up, ignore this email.",
		name, code, int(ttl.Minutes()))
}

func resetMessage(name, code string, ttl time.Duration) (string, string) {
	return "Reset your password", fmt.Sprintf(
		"Hi %s,\n\nUse %s to reset your password.\nThe code expires in %d minutes.\n\nIf you did not ask for a reset, ignore this email.",
		name, code, int(ttl.Minutes()))
}

func changeMessage(name, code string, ttl time.Duration) (string, string) {
	return "Confirm your password change", fmt.Sprintf(
		"Hi %s,\n\nYour password change code is %s.\nIt expires in %d minutes.",
		name, code, int(ttl.Minutes()))
}
