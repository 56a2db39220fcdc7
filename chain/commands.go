package chain

import "fmt"

// CommandKind tags the closed set of programmable transaction commands.
type CommandKind uint8

const (
	MoveCall CommandKind = iota
	SplitCoins
	TransferObjects
	MergeCoins
	MakeMoveVec
	Publish
	Upgrade
)

func (k CommandKind) String() string {
	switch k {
	case MoveCall:
		return "MoveCall"
	case SplitCoins:
		return "SplitCoins"
	case TransferObjects:
		return "TransferObjects"
	case MergeCoins:
		return "MergeCoins"
	case MakeMoveVec:
		return "MakeMoveVec"
	case Publish:
		return "Publish"
	case Upgrade:
		return "Upgrade"
	default:
		return fmt.Sprintf("CommandKind(%d)", k)
	}
}

// ArgumentKind tags a command argument.
type ArgumentKind uint8

const (
	// GasCoin refers to the transaction's implicit gas coin. Any appearance
	// in a sponsored body lets the sender spend the sponsor's coin beyond
	// the gas fee, so the policy layer rejects it unless opted in.
	GasCoin ArgumentKind = iota
	// Input refers to the n-th transaction input.
	Input
	// Result refers to the output of a previous command.
	Result
	// NestedResult refers to one value of a previous multi-value result.
	NestedResult
)

func (k ArgumentKind) String() string {
	switch k {
	case GasCoin:
		return "GasCoin"
	case Input:
		return "Input"
	case Result:
		return "Result"
	case NestedResult:
		return "NestedResult"
	default:
		return fmt.Sprintf("ArgumentKind(%d)", k)
	}
}

// Argument is one command argument.
type Argument struct {
	Kind  ArgumentKind
	Index uint16 // input or result index; unused for GasCoin
	Sub   uint16 // nested result index; only set for NestedResult
}

// Command is one entry of a transaction body, tagged by Kind. Only the fields
// of the tagged variant are populated.
type Command struct {
	Kind CommandKind

	// MoveCall
	Package   Address
	Module    string
	Function  string
	Arguments []Argument

	// SplitCoins
	Coin    *Argument
	Amounts []Argument

	// TransferObjects
	Objects   []Argument
	Recipient *Argument

	// MergeCoins
	Destination *Argument
	Sources     []Argument

	// MakeMoveVec
	Elements []Argument

	// Upgrade
	Ticket *Argument
}

// Target returns the canonical package::module::function of a MoveCall.
func (c *Command) Target() (string, error) {
	if c.Kind != MoveCall {
		return "", fmt.Errorf("%s command has no target", c.Kind)
	}
	return NormalizeTarget(string(c.Package) + "::" + c.Module + "::" + c.Function)
}

// InputArguments enumerates every argument the command consumes, per variant.
// Publish takes none, which is why it passes the gas coin check by default.
func (c *Command) InputArguments() []Argument {
	switch c.Kind {
	case MoveCall:
		return c.Arguments
	case SplitCoins:
		args := make([]Argument, 0, len(c.Amounts)+1)
		if c.Coin != nil {
			args = append(args, *c.Coin)
		}
		return append(args, c.Amounts...)
	case TransferObjects:
		args := make([]Argument, 0, len(c.Objects)+1)
		args = append(args, c.Objects...)
		if c.Recipient != nil {
			args = append(args, *c.Recipient)
		}
		return args
	case MergeCoins:
		args := make([]Argument, 0, len(c.Sources)+1)
		if c.Destination != nil {
			args = append(args, *c.Destination)
		}
		return append(args, c.Sources...)
	case MakeMoveVec:
		return c.Elements
	case Upgrade:
		if c.Ticket != nil {
			return []Argument{*c.Ticket}
		}
		return nil
	case Publish:
		return nil
	default:
		return nil
	}
}
