// Package pipeline provides the request pipeline execution engine.
//
// A Pipeline is an ordered list of stages followed by a terminal handler
// (normally the route table). Every request gets one Context that all stages
// share. Each stage returns one of three results:
//   - Continue: hand the request to the next stage
//   - Halt: the stage already wrote a response, stop here
//   - Fail: stop and send the error to the error stage
//
// Panics in a stage or in the terminal handler are recovered and treated as
// Fail. Callbacks registered with Context.OnComplete run after the response,
// whatever the outcome.
//
// # Ordering
//
// Stages run strictly in registration order and the order is fixed once
// New returns:
//
//	p := pipeline.New(router, errorStage, bodyParser, cookieParser, ...)
//	http.ListenAndServe(addr, p)
package pipeline
