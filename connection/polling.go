package connection

// UpdateDataPolling arms the descriptor according to the data layer desire.
func (c *Conn) UpdateDataPolling() {
	c.reconcile(c.dataWant)
}

// UpdateSockPolling arms the descriptor according to the socket layer desire.
func (c *Conn) UpdateSockPolling() {
	c.reconcile(c.sockWant)
}

// UpdatePolling commits the interest the connection currently needs: none
// after an error, the socket layer desire while a handshake or a connect is
// pending, the data layer desire otherwise.
func (c *Conn) UpdatePolling() {
	switch {
	case c.err:
		c.stopPolling()
	case c.pollSock():
		c.UpdateSockPolling()
	default:
		c.UpdateDataPolling()
	}
}

func (c *Conn) pollSock() bool {
	return c.handshake != 0 || c.progress.Has(progressWaiting) || c.policy.Has(PolicyPollSock)
}

// reconcile calls the poller only for directions whose armed state differs
// from desire, so repeated calls are free.
func (c *Conn) reconcile(desire Polling) {
	if !c.ctrlReady {
		return
	}
	if desire.Read && !c.armed.Read {
		c.poller.WantRecv(c.fd)
		c.armed.Read = true
	} else if !desire.Read && c.armed.Read {
		c.poller.StopRecv(c.fd)
		c.armed.Read = false
	}
	if desire.Write && !c.armed.Write {
		c.poller.WantSend(c.fd)
		c.armed.Write = true
	} else if !desire.Write && c.armed.Write {
		c.poller.StopSend(c.fd)
		c.armed.Write = false
	}
}

func (c *Conn) stopPolling() {
	c.dataWant = Polling{}
	c.sockWant = Polling{}
	c.reconcile(Polling{})
}

// refreshPolling forgets the previous round's would-block hints and reloads
// the armed state from the poller.
func (c *Conn) refreshPolling() {
	c.waitRoom = false
	c.waitData = false
	if !c.ctrlReady {
		return
	}
	c.armed = Polling{
		Read:  c.poller.RecvActive(c.fd),
		Write: c.poller.SendActive(c.fd),
	}
}
