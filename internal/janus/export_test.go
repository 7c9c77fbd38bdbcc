package janus

// PendingLen exposes the number of in-flight transactions to tests.
func (c *Client) PendingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
