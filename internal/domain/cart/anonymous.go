package cart

// The functions in this file operate on cookie-held carts. They never mutate
// their input; callers must re-encode the returned cart and hand it back to
// the client, otherwise the change is lost.

// Add increments the quantity of an existing line, or inserts a new one.
// The selected flag of an existing line is replaced by the request flag.
func Add(c Cart, id ItemID, qty int64, selected bool) (Cart, error) {
	if err := ValidateItemID(id); err != nil {
		return c, err
	}
	if err := ValidateQuantity(qty); err != nil {
		return c, err
	}

	out := c.Clone()
	line, ok := out[id]
	if !ok {
		line = Line{ItemID: id}
	}
	line.Quantity += qty
	line.Selected = selected
	out[id] = line
	return out, nil
}

// Set overwrites a line, inserting it when absent
func Set(c Cart, id ItemID, qty int64, selected bool) (Cart, error) {
	if err := ValidateItemID(id); err != nil {
		return c, err
	}
	if err := ValidateQuantity(qty); err != nil {
		return c, err
	}

	out := c.Clone()
	out[id] = Line{ItemID: id, Quantity: qty, Selected: selected}
	return out, nil
}

// Remove deletes a line. Removing an absent line is a no-op.
func Remove(c Cart, id ItemID) Cart {
	out := c.Clone()
	delete(out, id)
	return out
}

// SetSelected changes the selection of a single existing line
func SetSelected(c Cart, id ItemID, selected bool) (Cart, error) {
	if err := ValidateItemID(id); err != nil {
		return c, err
	}
	line, ok := c[id]
	if !ok {
		return c, ErrLineNotFound
	}

	out := c.Clone()
	line.Selected = selected
	out[id] = line
	return out, nil
}

// SetAllSelected applies the selection flag to every line
func SetAllSelected(c Cart, selected bool) Cart {
	out := c.Clone()
	for id, line := range out {
		line.Selected = selected
		out[id] = line
	}
	return out
}
