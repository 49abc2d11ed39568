package nvmemi

// Controller represents one NVMe controller attached to an endpoint's
// subsystem, identified by its controller ID as reported by a
// controller list read during topology scan.
type Controller struct {
	ep *Endpoint
	id uint16
}

// ID returns the controller's NVMe controller ID.
func (c *Controller) ID() uint16 { return c.id }

// Endpoint returns the controller's owning endpoint.
func (c *Controller) Endpoint() *Endpoint { return c.ep }

// Close detaches the controller from its endpoint. Controllers hold
// no resource of their own; closing one never touches the wire.
func (c *Controller) Close() {
	eps := c.ep
	if eps == nil {
		return
	}
	cs := eps.controllers
	for i, e := range cs {
		if e == c {
			eps.controllers = append(cs[:i], cs[i+1:]...)
			break
		}
	}
	c.ep = nil
}
