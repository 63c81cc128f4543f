package allocation

import "time"

// 消息类型体系
// 设计说明:
// 1. Command(命令)描述"希望系统做的事",有且只有一个处理器,处理失败向调用方抛出
// 2. Event(事件)描述"已经发生的事实",可以有0到多个处理器,处理失败只记录日志
// 3. 通过标记接口区分两类消息,消息总线按类型路由(固定映射,启动时注册后只读)
// 4. 消息都是不可变的纯数据,不携带任何行为

// Message 消息(Command与Event的统一抽象)
type Message interface {
	isMessage()
}

// Command 命令消息
type Command interface {
	Message
	isCommand()
}

// Event 事件消息
type Event interface {
	Message
	isEvent()
}

// =========================================
// 命令定义
// =========================================

// CreateBatch 创建批次命令
// ETA为nil表示批次已在仓库中(现货),非nil表示在途批次的预计到货日期
type CreateBatch struct {
	Ref string     // 批次引用号(全局唯一)
	SKU string     // 库存单位
	Qty int        // 采购数量
	ETA *time.Time // 预计到货日期(nil=现货)
}

// Allocate 分配订单行命令
type Allocate struct {
	OrderID string // 订单号
	SKU     string // 库存单位
	Qty     int    // 需求数量
}

// ChangeBatchQuantity 调整批次采购数量命令
// 典型场景:供应商发货短缺,需要下调已建批次的数量
type ChangeBatchQuantity struct {
	BatchRef string // 批次引用号
	Qty      int    // 调整后的采购数量
}

func (CreateBatch) isMessage()         {}
func (CreateBatch) isCommand()         {}
func (Allocate) isMessage()            {}
func (Allocate) isCommand()            {}
func (ChangeBatchQuantity) isMessage() {}
func (ChangeBatchQuantity) isCommand() {}

// =========================================
// 事件定义
// =========================================

// Allocated 订单行已分配事件
type Allocated struct {
	OrderID  string // 订单号
	SKU      string // 库存单位
	Qty      int    // 分配数量
	BatchRef string // 被分配的批次引用号
}

// Deallocated 订单行已解除分配事件
// 由批次数量下调触发,下游处理器会为该订单行重新发起分配
type Deallocated struct {
	OrderID string
	SKU     string
	Qty     int
}

// OutOfStock 缺货事件
// 注意:缺货是正常的业务结果而非错误,分配命令本身不会因此失败,
// 只是调用方拿不到批次引用号,并由事件处理器异步发出缺货通知
type OutOfStock struct {
	SKU string
}

func (Allocated) isMessage()   {}
func (Allocated) isEvent()     {}
func (Deallocated) isMessage() {}
func (Deallocated) isEvent()   {}
func (OutOfStock) isMessage()  {}
func (OutOfStock) isEvent()    {}
