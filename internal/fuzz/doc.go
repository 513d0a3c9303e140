// Package fuzztests houses Go fuzz harnesses for the parts of mend that read
// untrusted text: the Kotlin outline scanner, the diagnostic line parser and
// the structural patch actions. They guard against panics, hangs and outputs
// that break the file.
//
// Назначение: прогонять произвольные байты через syntax, diag и patch.
//
// Не делает: запуск сборки, запись файлов, выполнение CLI.
//
// Зависимости: internal/syntax, internal/diag, internal/patch.
package fuzztests
