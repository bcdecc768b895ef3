// Package daemon coordinates the long-running Sheetmill process.
//
// It wires configuration, the job store, and the conversion worker into a
// single lifecycle with flock-based locking to prevent multiple instances.
// The daemon exposes queue maintenance helpers for the control socket and
// owns the notifications triggered by daemon start/stop.
//
// Keep orchestration logic here: conversion behavior lives in the worker and
// engine packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
