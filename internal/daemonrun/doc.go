// Package daemonrun wires the daemon process together: per-run log file with
// a stable sheetmill.log pointer, retention sweep, PID file, job store,
// notification service, conversion worker, and the control socket. Run blocks
// until SIGINT/SIGTERM or a stop request over the socket.
package daemonrun
