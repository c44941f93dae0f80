// Package acquire coordinates the SPM and spectrometer connections during one measurement.
//
// Run samples SPM signals in one task while a spectrometer exposure runs in another. The exposure
// reply is the completion signal: once it arrives the sampling task is stopped and the collected
// samples are returned together with the reply.
//
//	acq := acquire.New(command.NewSPM(spm), command.NewSpectrometer(spec))
//	res, err := acq.Run(ctx, acquire.Plan{Signals: []int32{0, 30}, Exposure: "ACQ"})
//
// A request already sent on either connection is never aborted. Canceling ctx stops sampling
// after the in-flight read returns, but Run still waits for the exposure reply.
package acquire
