// Package journal — локальный журнал прохождений мастера в SQLite.
//
// Store реализует orchestrator.EventSink: каждое событие сохраняется,
// а сводка прохождения (runs) обновляется по типу события.
// Команда `provisio history` читает журнал.
package journal
