package protocol

const (
	CmdShow = "show"
	CmdBuy  = "buy"
	CmdSell = "sell"
	CmdExit = "exit"
)

// Reply texts, without the trailing newline.
const (
	ReplyNotEnough   = "Not enough left stocks"
	ReplyBuySuccess  = "[buy] success"
	ReplySellFail    = "[sell] fail"
	ReplySellSuccess = "[sell] success"
	ReplyExit        = "exit"
	ReplyEmpty       = "Empty command"
	ReplyTooLarge    = "Response too large"
)

// DefaultMessageSize matches MAXLINE of the C reference clients.
const DefaultMessageSize = 8192

type Command struct {
	Name     string
	ID       int64
	Quantity int64
}
