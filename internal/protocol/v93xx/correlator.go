package v93xx

// Correlator 记住最近一次请求的命令字节，供后续响应校验
// 单一持有者：由一个 Pipeline 独占，不在多条流之间共享
type Correlator struct {
	last CommandContext
	ok   bool
}

// Observe 每个成功解码的请求都覆盖，无论其自身校验结论
func (c *Correlator) Observe(req *RequestFrame) {
	if req == nil {
		return
	}
	c.last = req.Context()
	c.ok = true
}

// Last 返回最近一次请求；未见过请求时 ok=false
func (c *Correlator) Last() (CommandContext, bool) {
	return c.last, c.ok
}

// Prior 以指针形式返回，直接交给 DecodeResponse
func (c *Correlator) Prior() *CommandContext {
	if !c.ok {
		return nil
	}
	cmd := c.last
	return &cmd
}

// Reset 新一轮流分析开始时清空
func (c *Correlator) Reset() {
	c.last = CommandContext{}
	c.ok = false
}
