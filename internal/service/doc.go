// Package service implements the supervisor side of the treasure hub.
//
// Overview
// The Supervisor owns at most one monitor process. It talks to it through
// three channels:
//   - the mailbox, two files holding the command and its argument
//   - SIGUSR1 ("new request") and SIGTERM ("terminate")
//   - the result channel, a pipe inherited by the monitor as descriptor 3
//
// Data flow:
//
//	Session               Supervisor                 monitor process
//	   |                      |                            |
//	   | start_monitor ------>| os.Pipe + exec ----------->| Serve(fd 3)
//	   |                      |<----- startup frame -------|
//	   | list_hunts --------->| mailbox.Write + SIGUSR1 -->| Dispatch
//	   |<----- payload -------|<----- frame + sentinel ----|
//	   | stop_monitor ------->| SIGTERM ------------------>| drain delay
//	   |                      |<----- two notice frames ---|
//	   |<----- ExitEvent -----| cmd.Wait goroutine         | exit 0
//
// Exit events are posted by a goroutine blocked in cmd.Wait and consumed
// by the Session loop between commands, which is the only place the
// WorkerHandle changes.
//
// Runner is a thin wrapper around os/exec used for the score helper. It
// relays the helper's standard output until end of stream and only then
// waits for the process.
//
// Invariants:
//   - At most one monitor per Supervisor.
//   - No request is submitted while a stop is in flight.
//   - Every response ends with exactly one sentinel, which is never printed.
//   - Score helpers run strictly one after another.
//
// internal/service/service_test.go shows the whole lifecycle against real
// processes.
package service
