// Package authgate orchestrates the authentication lifecycle flows of a
// banking portal against an external identity provider: first-time
// registration, OTP-gated password reset, Guardian (push MFA) reset,
// passkey fallback, step-up push approval, and MFA enrollment.
//
// The engine owns the user-account state machine and the single-use token
// stores; credentials and MFA challenges live entirely behind the
// IdentityGateway. Construct an Engine through the Builder:
//
//	engine, err := authgate.New().
//		WithRedis(redisClient).
//		WithUserDirectory(directory).
//		WithOtpGateway(otpGateway).
//		WithIdentityGateway(identityGateway).
//		Build()
package authgate
