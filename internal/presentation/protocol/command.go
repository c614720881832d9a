package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates the command name and its arguments on the wire.
const Delimiter = ":"

var (
	ErrUnknownCommand   = errors.New("protocol: unknown command")
	ErrMalformedCommand = errors.New("protocol: malformed command")
)

type CommandName string

const (
	CmdRegisterCustomer CommandName = "REGISTER_CUSTOMER"
	CmdLoginCustomer    CommandName = "LOGIN_CUSTOMER"
	CmdListProducts     CommandName = "LIST_PRODUCTS"
	CmdAddToCart        CommandName = "ADD_TO_CART"
	CmdViewCart         CommandName = "VIEW_CART"
	CmdCheckout         CommandName = "CHECKOUT"
	CmdLogout           CommandName = "LOGOUT"
)

// Command is a parsed protocol line. Only the fields relevant to the
// command name are populated.
type Command struct {
	Name       CommandName
	CustomerID string
	Customer   string // display name for REGISTER_CUSTOMER
	ProductID  string
	Quantity   int
}

// Parse reads one `COMMAND[:ARG]*` line. Command names are case-insensitive.
// Display names may themselves contain the delimiter, so trailing arguments
// are rejoined where the grammar allows it.
func Parse(line string) (*Command, error) {
	parts := strings.Split(line, Delimiter)
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return nil, ErrMalformedCommand
	}
	name := CommandName(strings.ToUpper(strings.TrimSpace(parts[0])))

	switch name {
	case CmdRegisterCustomer:
		if len(parts) < 3 {
			return nil, fmt.Errorf("%w: use REGISTER_CUSTOMER:customerId:name", ErrMalformedCommand)
		}
		return &Command{
			Name:       name,
			CustomerID: parts[1],
			Customer:   strings.Join(parts[2:], Delimiter),
		}, nil

	case CmdLoginCustomer:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: use LOGIN_CUSTOMER:customerId", ErrMalformedCommand)
		}
		return &Command{
			Name:       name,
			CustomerID: strings.Join(parts[1:], Delimiter),
		}, nil

	case CmdAddToCart:
		if len(parts) < 3 {
			return nil, fmt.Errorf("%w: use ADD_TO_CART:productId:quantity", ErrMalformedCommand)
		}
		qty, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("%w: quantity must be a positive integer", ErrMalformedCommand)
		}
		return &Command{
			Name:      name,
			ProductID: strings.Join(parts[1:len(parts)-1], Delimiter),
			Quantity:  qty,
		}, nil

	case CmdListProducts, CmdViewCart, CmdCheckout, CmdLogout:
		if len(parts) > 1 {
			return nil, ErrMalformedCommand
		}
		return &Command{Name: name}, nil

	default:
		return nil, ErrUnknownCommand
	}
}

// RequiresLogin reports whether the command may only be issued on an
// authenticated connection.
func (c CommandName) RequiresLogin() bool {
	switch c {
	case CmdAddToCart, CmdViewCart, CmdCheckout, CmdLogout:
		return true
	}
	return false
}
