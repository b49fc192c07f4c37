package connection

// handleEvent runs one round for a ready descriptor. It returns early,
// without touching the connection, when the data layer destroyed it.
func (c *Conn) handleEvent() {
	c.refreshPolling()
	previous := c.state()
	previous.err = false

	if !c.process(&previous) {
		return
	}

	if c.policy.Has(PolicyWakeData) && c.data != nil && c.state() != previous {
		if c.data.Wake(c) != nil {
			return
		}
	}

	if !c.progress.Has(progressWaiting|ProgressConnected) && !c.err {
		c.progress |= ProgressConnected
	}

	if c.ctrlReady {
		c.poller.ClearEvents(c.fd)
	}
	c.UpdatePolling()
}

// process runs handshakes, data layer initialization and transfers until
// nothing more can be done this round. It returns false if Init destroyed
// the connection.
func (c *Conn) process(previous *connState) bool {
	for {
		for c.handshake != 0 || c.err {
			if c.err || !c.runHandshakes() {
				return true
			}
		}

		if !c.policy.Has(PolicyPollSock) {
			c.sockWant = Polling{}
		}

		if c.policy.Has(PolicyInitData) && c.data != nil {
			if c.data.Init(c) != nil {
				return false
			}
			c.policy &^= PolicyInitData
		}

		if c.transport != nil && c.data != nil && c.poller.RecvReady(c.fd) &&
			c.dataWant.Read && !c.waitRoom && !c.err && c.handshake == 0 {
			*previous = stateChanged
			c.data.Recv(c)
		}

		if c.transport != nil && c.data != nil && c.poller.SendReady(c.fd) &&
			c.dataWant.Write && !c.waitData && !c.err && c.handshake == 0 {
			*previous = stateChanged
			c.data.Send(c)
		}

		if c.handshake != 0 || c.err {
			continue
		}

		if c.progress.Has(ProgressWaitL4) && !c.prober.Probe(c) {
			// still connecting or failed; both leave through wake
			return true
		}
		return true
	}
}
