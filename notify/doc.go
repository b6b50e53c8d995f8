// Package notify composes the transactional notifications (welcome, OTP,
// password reset, admin alert, deposit, withdrawal, broadcast and contact
// form) and hands them to a retrying sender. Composition is pure: identical
// parameters always produce a byte-identical message. Every notice returns a
// Result value instead of an error.
package notify
