// Package errors provides examples of structured error handling in Sleuth.
package errors_test

import (
	"fmt"

	"github.com/ajitpratap0/sleuth/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.New(errors.ErrorTypeConnection, "failed to connect to database")

	err = err.WithDetail("host", "localhost").
		WithDetail("port", 5432).
		WithDetail("database", "hr")

	fmt.Println(err.Error())

	// Output:
	// connection: failed to connect to database
}

// ExampleWrap shows how to wrap a driver error with scan context.
func ExampleWrap() {
	driverErr := fmt.Errorf("pq: permission denied for table payroll")

	err := errors.Wrap(driverErr, errors.ErrorTypePermission, "unit not readable").
		WithDetail("unit", "public.payroll")

	if errors.IsType(err, errors.ErrorTypePermission) {
		fmt.Println("unit-level error, skip and continue")
	}

	// Output:
	// unit-level error, skip and continue
}

// ExampleIsRetryable shows the retry decision for connection trouble.
func ExampleIsRetryable() {
	transient := errors.New(errors.ErrorTypeConnection, "connection reset by peer")
	badCreds := errors.New(errors.ErrorTypeAuthentication, "password authentication failed")

	if errors.IsRetryable(transient) {
		fmt.Println("transient error is retryable")
	}

	if !errors.IsRetryable(badCreds) {
		fmt.Println("credential error is not retryable")
	}

	// Output:
	// transient error is retryable
	// credential error is not retryable
}

// ExampleIsFatal shows which errors abort a whole scan run.
func ExampleIsFatal() {
	auth := errors.New(errors.ErrorTypeAuthentication, "invalid username/password")
	unit := errors.New(errors.ErrorTypeUnit, "table vanished mid-scan")

	fmt.Printf("auth aborts the run: %v\n", errors.IsFatal(auth))
	fmt.Printf("unit failure aborts the run: %v\n", errors.IsFatal(unit))

	// Output:
	// auth aborts the run: true
	// unit failure aborts the run: false
}

// Example_errorChain shows how context accumulates across layers.
func Example_errorChain() {
	err := errors.New(errors.ErrorTypeConnection, "connection timeout").
		WithDetail("host", "db.example.com")

	err = errors.Wrap(err, errors.ErrorTypeUnit, "failed to scan unit").
		WithDetail("unit", "hr.employees")

	fmt.Println("full error chain:", err)

	// Output:
	// full error chain: unit: failed to scan unit: connection: connection timeout
}
